package billing

import (
	"encoding/json"
	"testing"
)

func TestExtractProducts(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		expected int
	}{
		{
			name:     "flat products shape",
			payload:  `{"products": [{"productId": "P-1"}, {"productId": "P-2"}]}`,
			expected: 2,
		},
		{
			name: "usage periods shape",
			payload: `{"usagePeriods": [
				{"usageProducts": [{"productId": "P-1"}]},
				{"usageProducts": [{"productId": "P-2"}, {"productId": "P-3"}]}
			]}`,
			expected: 3,
		},
		{
			name:     "flat shape wins when both present",
			payload:  `{"products": [{"productId": "P-1"}], "usagePeriods": [{"usageProducts": [{"productId": "P-9"}]}]}`,
			expected: 1,
		},
		{
			name:     "neither shape",
			payload:  `{"requestDate": "2026-08-02T01:00:00Z"}`,
			expected: 0,
		},
		{
			name:     "invalid json",
			payload:  `{not json`,
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products := ExtractProducts(json.RawMessage(tt.payload))
			if len(products) != tt.expected {
				t.Errorf("ExtractProducts() returned %d products, want %d", len(products), tt.expected)
			}
		})
	}
}

func TestExtractProducts_ReportingGroups(t *testing.T) {
	payload := `{"products": [{
		"productId": "P-1",
		"productName": "Ion",
		"reportingGroups": [
			{"reportingGroupId": 101, "reportingGroupName": "web"},
			{"reportingGroupId": 102, "reportingGroupName": "api"}
		]
	}]}`

	products := ExtractProducts(json.RawMessage(payload))
	if len(products) != 1 {
		t.Fatalf("ExtractProducts() returned %d products, want 1", len(products))
	}

	product := products[0]
	if product.ProductName != "Ion" {
		t.Errorf("ProductName = %q, want %q", product.ProductName, "Ion")
	}
	if len(product.ReportingGroups) != 2 {
		t.Fatalf("got %d reporting groups, want 2", len(product.ReportingGroups))
	}
	if product.ReportingGroups[0].ReportingGroupID != 101 {
		t.Errorf("ReportingGroupID = %d, want 101", product.ReportingGroups[0].ReportingGroupID)
	}
}

func TestDataStatus(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		expected string
	}{
		{name: "collecting", payload: `{"dataStatus": "COLLECTING_DATA"}`, expected: StatusCollecting},
		{name: "done", payload: `{"dataStatus": "DONE"}`, expected: "DONE"},
		{name: "missing field", payload: `{"usagePeriods": []}`, expected: StatusUnknown},
		{name: "invalid json", payload: `garbage`, expected: StatusUnknown},
		{name: "empty status", payload: `{"dataStatus": ""}`, expected: StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DataStatus(json.RawMessage(tt.payload)); got != tt.expected {
				t.Errorf("DataStatus() = %q, want %q", got, tt.expected)
			}
		})
	}
}
