package utils

import (
	"reflect"
	"testing"
)

func TestPrefixes(t *testing.T) {
	cases := []struct {
		in       string
		minLen   int
		expected []string
	}{
		{"ABC", 1, []string{"a", "ab", "abc"}},
		{"NV-01", 3, []string{"nv-", "nv-0", "nv-01"}},
		{"ab", 3, []string{"ab"}},
		{"  Wave  ", 1, []string{"w", "wa", "wav", "wave"}},
		{"", 1, nil},
	}
	for _, tc := range cases {
		got := Prefixes(tc.in, tc.minLen)
		if !reflect.DeepEqual(got, tc.expected) {
			t.Fatalf("Prefixes(%q, %d) = %v, expected %v", tc.in, tc.minLen, got, tc.expected)
		}
	}
}

func TestSerialKeywordsUnionsStrippedForm(t *testing.T) {
	got := SerialKeywords("ABC-1234")

	want := map[string]bool{
		"abc":      true,
		"abc-1234": true, // full raw form
		"abc1":     true, // stripped prefixes
		"abc1234":  true, // full stripped form
	}
	set := map[string]bool{}
	for _, kw := range got {
		set[kw] = true
	}
	for kw := range want {
		if !set[kw] {
			t.Fatalf("SerialKeywords(ABC-1234) missing %q, got %v", kw, got)
		}
	}
	if set["ab"] {
		t.Fatalf("SerialKeywords must not emit prefixes below three characters, got %v", got)
	}
}

func TestSerialKeywordsDeduplicates(t *testing.T) {
	once := SerialKeywords("NV-001")
	twice := SerialKeywords("NV-001", "NV-001")
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("duplicate serials changed the keyword set: %v vs %v", once, twice)
	}

	seen := map[string]bool{}
	for _, kw := range twice {
		if seen[kw] {
			t.Fatalf("keyword %q emitted twice in %v", kw, twice)
		}
		seen[kw] = true
	}
}

func TestNameKeywordsStartAtOneCharacter(t *testing.T) {
	got := NameKeywords("Wave")
	if len(got) == 0 || got[0] != "w" {
		t.Fatalf("NameKeywords(Wave) expected to start with single-char prefix, got %v", got)
	}
	last := got[len(got)-1]
	if last != "wave" {
		t.Fatalf("NameKeywords(Wave) expected to end with full lowercase form, got %v", got)
	}
}

func TestNormalizeSerials(t *testing.T) {
	cases := []struct {
		in       []string
		expected []string
	}{
		{[]string{"NV-001"}, []string{"NV-001"}},
		{[]string{",NV-001, NV-002"}, []string{"NV-001", "NV-002"}},
		{[]string{"NV-001", "NV-001"}, []string{"NV-001"}},
		{[]string{"  "}, nil},
		{[]string{","}, nil},
	}
	for _, tc := range cases {
		got := NormalizeSerials(tc.in...)
		if !reflect.DeepEqual(got, tc.expected) {
			t.Fatalf("NormalizeSerials(%v) = %v, expected %v", tc.in, got, tc.expected)
		}
	}
}

func TestStripNonAlnum(t *testing.T) {
	if got := StripNonAlnum("2-ABC 1234/x"); got != "2ABC1234x" {
		t.Fatalf("StripNonAlnum = %q", got)
	}
}
