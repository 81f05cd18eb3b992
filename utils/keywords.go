package utils

import "strings"

// Search keyword helpers. The mobile clients filter by array-containment, so
// every searchable field carries a precomputed list of lowercase prefixes.
// Pure string work, no storage access.

// Prefixes returns the lowercase prefixes of s from minLen up to len(s).
// A value shorter than minLen yields just its lowercase form.
func Prefixes(s string, minLen int) []string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	if minLen < 1 {
		minLen = 1
	}
	runes := []rune(s)
	if len(runes) <= minLen {
		return []string{s}
	}
	out := make([]string, 0, len(runes)-minLen+1)
	for i := minLen; i <= len(runes); i++ {
		out = append(out, string(runes[:i]))
	}
	return out
}

// NameKeywords generates the search list for a free-text field (product or
// customer name): lowercase prefixes of length 1..N.
func NameKeywords(values ...string) []string {
	var out []string
	for _, v := range values {
		out = append(out, Prefixes(v, 1)...)
	}
	return UniqueSlice(out)
}

// SerialKeywords generates the search list for an identifier field. Prefixes
// start at length 3 so one- and two-character queries don't flood results.
// The punctuation-stripped form is generated too and unioned in, so the query
// matches with or without dashes.
func SerialKeywords(values ...string) []string {
	var out []string
	for _, v := range values {
		out = append(out, Prefixes(v, 3)...)
		if stripped := StripNonAlnum(v); stripped != "" && !strings.EqualFold(stripped, strings.TrimSpace(v)) {
			out = append(out, Prefixes(stripped, 3)...)
		}
	}
	return UniqueSlice(out)
}

// PhoneKeywords generates the search list for a phone field across every
// dialing form of the number.
func PhoneKeywords(phoneNumber string) []string {
	var out []string
	for _, v := range PhoneVariants(phoneNumber) {
		out = append(out, Prefixes(v, 3)...)
	}
	return UniqueSlice(out)
}
