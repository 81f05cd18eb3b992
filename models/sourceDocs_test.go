package models

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestSerialFieldAbsorbsUpstreamShapes(t *testing.T) {
	cases := []struct {
		name     string
		payload  string
		expected SerialField
	}{
		{"scalar", `{"vehicleNo":"NV-001"}`, SerialField{"NV-001"}},
		{"array", `{"vehicleNo":["NV-001","NV-002"]}`, SerialField{"NV-001", "NV-002"}},
		{"comma joined", `{"vehicleNo":"NV-001,NV-002"}`, SerialField{"NV-001", "NV-002"}},
		{"leading comma", `{"vehicleNo":",NV-001"}`, SerialField{"NV-001"}},
		{"duplicates collapse", `{"vehicleNo":["NV-001","NV-001"]}`, SerialField{"NV-001"}},
		{"empty string", `{"vehicleNo":""}`, nil},
	}
	for _, tc := range cases {
		var line DocLineItem
		if err := json.Unmarshal([]byte(tc.payload), &line); err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if !reflect.DeepEqual(line.VehicleNo, tc.expected) {
			t.Fatalf("%s: got %v, expected %v", tc.name, line.VehicleNo, tc.expected)
		}
	}
}

func TestStockItemComputeSearchFieldsIdempotent(t *testing.T) {
	item := StockItem{
		VehicleNo:     "NV-001",
		VehicleNoFull: "NV-000001",
		Model:         "Wave 110i",
		ProductName:   "Honda Wave 110i",
	}
	item.ComputeSearchFields()
	first := item

	item.ComputeSearchFields()
	if !reflect.DeepEqual(item.VehicleNoPartial, first.VehicleNoPartial) ||
		!reflect.DeepEqual(item.ModelPartial, first.ModelPartial) {
		t.Fatalf("ComputeSearchFields changed output on recomputation")
	}

	if item.VehicleNoLower != "nv-001" {
		t.Fatalf("VehicleNoLower = %q", item.VehicleNoLower)
	}
	if !item.HasComputedKeywords() {
		t.Fatalf("HasComputedKeywords false after ComputeSearchFields")
	}
}

func TestHasComputedKeywordsDetectsMissingArrays(t *testing.T) {
	item := StockItem{VehicleNo: "NV-001"}
	if item.HasComputedKeywords() {
		t.Fatalf("item with serial and no keyword array must report missing keywords")
	}

	// FIFO item has no serial and no model, nothing to compute.
	fifo := StockItem{IsFIFO: true}
	if !fifo.HasComputedKeywords() {
		t.Fatalf("FIFO item without identity fields must count as complete")
	}
}

func TestIsUsedProductCode(t *testing.T) {
	cases := []struct {
		code     string
		expected bool
	}{
		{"2-ABC", true},
		{" 2-ABC", true},
		{"1-ABC", false},
		{"ABC-2", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsUsedProductCode(tc.code); got != tc.expected {
			t.Fatalf("IsUsedProductCode(%q) = %v, expected %v", tc.code, got, tc.expected)
		}
	}
}

func TestDefaultGroupForDisplayName(t *testing.T) {
	cases := []struct {
		displayName string
		expected    string
	}{
		{"", GroupPending},
		{"Branch Admin 01", GroupAdmin},
		{"sale-somsak", GroupSales},
		{"STOCK CLERK", GroupStock},
		{"Somsak J.", GroupUsers},
	}
	for _, tc := range cases {
		if got := DefaultGroupForDisplayName(tc.displayName); got != tc.expected {
			t.Fatalf("DefaultGroupForDisplayName(%q) = %q, expected %q", tc.displayName, got, tc.expected)
		}
	}
}

func TestAppendTransactionIsAppendOnly(t *testing.T) {
	item := StockItem{}
	item.AppendTransaction(TransactionLog{Type: StockTransactionTypeImport, DocId: "a"})
	item.AppendTransaction(TransactionLog{Type: StockTransactionTypeReserve, DocId: "b"})

	if len(item.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(item.Transactions))
	}
	if item.Transactions[0].Type != StockTransactionTypeImport || item.Transactions[1].Type != StockTransactionTypeReserve {
		t.Fatalf("transaction order not preserved: %+v", item.Transactions)
	}
}
