package billing

import "encoding/json"

// Usage data statuses reported by the billing API inside usage payloads.
const (
	// StatusCollecting means the remote side is still aggregating data
	// for the month. Harvesting while any sample reports this status
	// produces incomplete rows.
	StatusCollecting = "COLLECTING_DATA"

	// StatusUnknown is used when a payload carries no dataStatus field.
	StatusUnknown = "UNKNOWN"
)

// Product is one product discovered under a contract.
type Product struct {
	ProductID       string           `json:"productId"`
	ProductName     string           `json:"productName"`
	ReportingGroups []ReportingGroup `json:"reportingGroups"`
}

// ReportingGroup is a CP-code reporting group nested under a product.
type ReportingGroup struct {
	ReportingGroupID   int64  `json:"reportingGroupId"`
	ReportingGroupName string `json:"reportingGroupName"`
}

// productsEnvelope covers the two response shapes the products endpoint
// is known to return: a flat products array, or usage periods that each
// carry usageProducts.
type productsEnvelope struct {
	Products     []Product `json:"products"`
	UsagePeriods []struct {
		UsageProducts []Product `json:"usageProducts"`
	} `json:"usagePeriods"`
}

// ExtractProducts pulls the product list out of a raw products payload.
// Returns nil when the payload has neither known shape.
func ExtractProducts(raw json.RawMessage) []Product {
	var envelope productsEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil
	}

	if len(envelope.Products) > 0 {
		return envelope.Products
	}

	var products []Product
	for _, period := range envelope.UsagePeriods {
		products = append(products, period.UsageProducts...)
	}
	return products
}

// DataStatus extracts the dataStatus tag from a raw usage payload.
// Returns StatusUnknown when the field is absent or the payload does not
// parse.
func DataStatus(raw json.RawMessage) string {
	var envelope struct {
		DataStatus string `json:"dataStatus"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.DataStatus == "" {
		return StatusUnknown
	}
	return envelope.DataStatus
}
