package workflow

import (
	"errors"
	"io"
	"reflect"
	"testing"

	"bitbucket.org/vmgroup/dealer_backend/config"
	"bitbucket.org/vmgroup/dealer_backend/utils"
	"github.com/sirupsen/logrus"
)

func TestOnlyBookkeepingChanged(t *testing.T) {
	cases := []struct {
		name     string
		oldObj   string
		newObj   string
		expected bool
	}{
		{
			name:     "identical payloads",
			oldObj:   `{"docNo":"B-001","completed":false}`,
			newObj:   `{"docNo":"B-001","completed":false}`,
			expected: true,
		},
		{
			name:     "only createdAt differs",
			oldObj:   `{"docNo":"B-001","createdAt":"2026-01-01T00:00:00Z"}`,
			newObj:   `{"docNo":"B-001","createdAt":"2026-01-01T00:00:05Z"}`,
			expected: true,
		},
		{
			name:     "createdAt added by server write-back",
			oldObj:   `{"docNo":"B-001"}`,
			newObj:   `{"docNo":"B-001","createdAt":"2026-01-01T00:00:05Z"}`,
			expected: true,
		},
		{
			name:     "real field changed",
			oldObj:   `{"docNo":"B-001","completed":false}`,
			newObj:   `{"docNo":"B-001","completed":true}`,
			expected: false,
		},
		{
			name:     "real change alongside createdAt change",
			oldObj:   `{"docNo":"B-001","completed":false,"createdAt":"2026-01-01T00:00:00Z"}`,
			newObj:   `{"docNo":"B-001","completed":true,"createdAt":"2026-01-01T00:00:05Z"}`,
			expected: false,
		},
	}
	for _, tc := range cases {
		got, err := OnlyBookkeepingChanged([]byte(tc.oldObj), []byte(tc.newObj))
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.expected {
			t.Fatalf("%s: got %v, expected %v", tc.name, got, tc.expected)
		}
	}
}

func TestStatusFlippedTrue(t *testing.T) {
	oldFlags := map[string]bool{"deleted": false, "completed": true}
	newFlags := map[string]bool{"deleted": true, "cancelled": true, "completed": true}

	got := StatusFlippedTrue(oldFlags, newFlags)
	expected := []string{"deleted", "cancelled"}
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("StatusFlippedTrue = %v, expected %v", got, expected)
	}

	// true->false never cascades.
	if got := StatusFlippedTrue(map[string]bool{"deleted": true}, map[string]bool{}); got != nil {
		t.Fatalf("true->false must not flip, got %v", got)
	}
}

func TestUnparseablePayloadIsDropped(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	// The unmarshal fails before the handler touches the database, so no tx
	// is needed here.
	msg := config.StockMessage{
		ReferenceType: "bookings",
		ReferenceId:   "B-001",
		BranchCode:    "01",
		Action:        "C",
		NewObj:        []byte("{not json"),
	}
	err := ProcessBookingWorkflow(nil, logger, msg)
	if err == nil {
		t.Fatalf("corrupt payload must fail")
	}
	if !errors.Is(err, utils.ErrDropMessage) {
		t.Fatalf("corrupt payload must be marked for ack-and-drop, got %v", err)
	}

	// Corrupt old objects on updates drop the same way.
	msg = config.StockMessage{
		ReferenceType: "deliver",
		ReferenceId:   "D-001",
		BranchCode:    "01",
		Action:        "U",
		NewObj:        []byte(`{"id":"D-001","docNo":"D-001","branchCode":"01"}`),
		OldObj:        []byte("{not json"),
	}
	if err := ProcessDeliverWorkflow(nil, logger, msg); !errors.Is(err, utils.ErrDropMessage) {
		t.Fatalf("corrupt old obj must be marked for ack-and-drop, got %v", err)
	}
}

func TestShortSerial(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"NV000123", "NV123"},
		{"ABC-0042", "ABC-42"},
		{"X0000", "X0"},
		{"NOnumbers", "NOnumbers"},
		{" NV001 ", "NV1"},
	}
	for _, tc := range cases {
		if got := shortSerial(tc.in); got != tc.expected {
			t.Fatalf("shortSerial(%q) = %q, expected %q", tc.in, got, tc.expected)
		}
	}
}
