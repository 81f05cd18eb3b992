package config

import (
	"os"
	"strings"
)

// Unmatched-serial policies. Controls what a workflow does when an incoming
// movement names a serial that resolves to zero open stock items.
const (
	UnmatchedPolicySkip   = "skip"
	UnmatchedPolicyError  = "error"
	UnmatchedPolicyReview = "review"
)

// UnmatchedSerialPolicy returns the configured policy for movements whose
// serial matches no open stock item.
//
// Set via env:
// - STOCK_UNMATCHED_POLICY=skip|error|review (default: review)
//
// skip drops the movement silently, error fails the message so Pub/Sub
// redelivers it, review records a ReviewItem for back-office follow-up and
// acks the message.
func UnmatchedSerialPolicy() string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STOCK_UNMATCHED_POLICY")))
	switch v {
	case UnmatchedPolicySkip, UnmatchedPolicyError, UnmatchedPolicyReview:
		return v
	}
	return UnmatchedPolicyReview
}
