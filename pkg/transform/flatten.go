// Package transform flattens raw billing payloads into warehouse rows.
// All functions are pure: they reshape collected data and never touch the
// network.
package transform

import (
	"encoding/json"

	"github.com/hyperbilling/akamai-usage-collector/pkg/billing"
	"github.com/hyperbilling/akamai-usage-collector/pkg/collector"
)

// ProductUsageRow is one daily stat value of one product.
type ProductUsageRow struct {
	BillingMonth string  `json:"billing_month" bigquery:"billing_month"`
	ContractID   string  `json:"contract_id" bigquery:"contract_id"`
	AccountKey   string  `json:"account_key" bigquery:"account_key"`
	CompanyName  string  `json:"company_name" bigquery:"company_name"`
	ProductID    string  `json:"product_id" bigquery:"product_id"`
	ProductName  string  `json:"product_name" bigquery:"product_name"`
	Region       string  `json:"region" bigquery:"region"`
	StatType     string  `json:"stat_type" bigquery:"stat_type"`
	Unit         string  `json:"unit" bigquery:"unit"`
	IsBillable   bool    `json:"is_billable" bigquery:"is_billable"`
	Date         string  `json:"date" bigquery:"date"`
	Value        float64 `json:"value" bigquery:"value"`
	DataStatus   string  `json:"data_status" bigquery:"data_status"`
	RequestDate  string  `json:"request_date" bigquery:"request_date"`
}

// ReportingGroupUsageRow is one daily stat value of one reporting group.
type ReportingGroupUsageRow struct {
	BillingMonth       string  `json:"billing_month" bigquery:"billing_month"`
	ContractID         string  `json:"contract_id" bigquery:"contract_id"`
	AccountKey         string  `json:"account_key" bigquery:"account_key"`
	CompanyName        string  `json:"company_name" bigquery:"company_name"`
	ProductID          string  `json:"product_id" bigquery:"product_id"`
	ProductName        string  `json:"product_name" bigquery:"product_name"`
	ReportingGroupID   int64   `json:"reporting_group_id" bigquery:"reporting_group_id"`
	ReportingGroupName string  `json:"reporting_group_name" bigquery:"reporting_group_name"`
	Region             string  `json:"region" bigquery:"region"`
	StatType           string  `json:"stat_type" bigquery:"stat_type"`
	Unit               string  `json:"unit" bigquery:"unit"`
	IsBillable         bool    `json:"is_billable" bigquery:"is_billable"`
	Date               string  `json:"date" bigquery:"date"`
	Value              float64 `json:"value" bigquery:"value"`
	DataStatus         string  `json:"data_status" bigquery:"data_status"`
	RequestDate        string  `json:"request_date" bigquery:"request_date"`
}

// ProductRow is one product-to-reporting-group assignment of a contract.
type ProductRow struct {
	BillingMonth       string `json:"billing_month" bigquery:"billing_month"`
	ContractID         string `json:"contract_id" bigquery:"contract_id"`
	AccountKey         string `json:"account_key" bigquery:"account_key"`
	CompanyName        string `json:"company_name" bigquery:"company_name"`
	ProductID          string `json:"product_id" bigquery:"product_id"`
	ProductName        string `json:"product_name" bigquery:"product_name"`
	ReportingGroupID   int64  `json:"reporting_group_id" bigquery:"reporting_group_id"`
	ReportingGroupName string `json:"reporting_group_name" bigquery:"reporting_group_name"`
	Month              string `json:"month" bigquery:"month"`
	Start              string `json:"start" bigquery:"start"`
	End                string `json:"end" bigquery:"end"`
	RequestDate        string `json:"request_date" bigquery:"request_date"`
}

// usageEnvelope is the wire shape of a daily usage payload.
type usageEnvelope struct {
	DataStatus   string `json:"dataStatus"`
	RequestDate  string `json:"requestDate"`
	UsagePeriods []struct {
		Region string `json:"region"`
		Stats  []struct {
			StatType   string `json:"statType"`
			Unit       string `json:"unit"`
			IsBillable bool   `json:"isBillable"`
			Values     []struct {
				Date  string  `json:"date"`
				Value float64 `json:"value"`
			} `json:"values"`
		} `json:"stats"`
	} `json:"usagePeriods"`
}

// productsEnvelope is the wire shape of a products listing payload.
type productsEnvelope struct {
	RequestDate  string `json:"requestDate"`
	Start        string `json:"start"`
	End          string `json:"end"`
	UsagePeriods []struct {
		Month         string            `json:"month"`
		UsageProducts []billing.Product `json:"usageProducts"`
	} `json:"usagePeriods"`
	Products []billing.Product `json:"products"`
}

// FlattenProductUsage expands collected product usage records into one
// row per daily stat value. Records whose payload does not parse are
// skipped; a gap in rows beats a poisoned load job.
func FlattenProductUsage(records map[string]collector.UsageRecord, billingMonth string) []ProductUsageRow {
	var rows []ProductUsageRow

	for _, record := range records {
		var usage usageEnvelope
		if err := json.Unmarshal(record.Data, &usage); err != nil {
			continue
		}

		for _, period := range usage.UsagePeriods {
			for _, stat := range period.Stats {
				for _, v := range stat.Values {
					rows = append(rows, ProductUsageRow{
						BillingMonth: billingMonth,
						ContractID:   record.ContractID,
						AccountKey:   record.AccountKey,
						CompanyName:  record.CompanyName,
						ProductID:    record.ProductID,
						ProductName:  record.ProductName,
						Region:       period.Region,
						StatType:     stat.StatType,
						Unit:         stat.Unit,
						IsBillable:   stat.IsBillable,
						Date:         v.Date,
						Value:        v.Value,
						DataStatus:   usage.DataStatus,
						RequestDate:  usage.RequestDate,
					})
				}
			}
		}
	}

	return rows
}

// FlattenReportingGroupUsage expands collected reporting group usage
// records into one row per daily stat value.
func FlattenReportingGroupUsage(records map[string]collector.UsageRecord, billingMonth string) []ReportingGroupUsageRow {
	var rows []ReportingGroupUsageRow

	for _, record := range records {
		var usage usageEnvelope
		if err := json.Unmarshal(record.Data, &usage); err != nil {
			continue
		}

		for _, period := range usage.UsagePeriods {
			for _, stat := range period.Stats {
				for _, v := range stat.Values {
					rows = append(rows, ReportingGroupUsageRow{
						BillingMonth:       billingMonth,
						ContractID:         record.ContractID,
						AccountKey:         record.AccountKey,
						CompanyName:        record.CompanyName,
						ProductID:          record.ProductID,
						ProductName:        record.ProductName,
						ReportingGroupID:   record.ReportingGroupID,
						ReportingGroupName: record.ReportingGroupName,
						Region:             period.Region,
						StatType:           stat.StatType,
						Unit:               stat.Unit,
						IsBillable:         stat.IsBillable,
						Date:               v.Date,
						Value:              v.Value,
						DataStatus:         usage.DataStatus,
						RequestDate:        usage.RequestDate,
					})
				}
			}
		}
	}

	return rows
}

// FlattenProducts expands product listings into one row per product and
// reporting group. Products without reporting groups still emit one row
// with empty group identity so the product itself stays visible.
func FlattenProducts(listings map[string]collector.ProductListing, billingMonth string) []ProductRow {
	var rows []ProductRow

	for contractID, listing := range listings {
		var envelope productsEnvelope
		if err := json.Unmarshal(listing.Data, &envelope); err != nil {
			continue
		}

		emit := func(month string, product billing.Product) {
			if len(product.ReportingGroups) == 0 {
				rows = append(rows, ProductRow{
					BillingMonth: billingMonth,
					ContractID:   contractID,
					AccountKey:   listing.AccountKey,
					CompanyName:  listing.CompanyName,
					ProductID:    product.ProductID,
					ProductName:  product.ProductName,
					Month:        month,
					Start:        envelope.Start,
					End:          envelope.End,
					RequestDate:  envelope.RequestDate,
				})
				return
			}
			for _, rg := range product.ReportingGroups {
				rows = append(rows, ProductRow{
					BillingMonth:       billingMonth,
					ContractID:         contractID,
					AccountKey:         listing.AccountKey,
					CompanyName:        listing.CompanyName,
					ProductID:          product.ProductID,
					ProductName:        product.ProductName,
					ReportingGroupID:   rg.ReportingGroupID,
					ReportingGroupName: rg.ReportingGroupName,
					Month:              month,
					Start:              envelope.Start,
					End:                envelope.End,
					RequestDate:        envelope.RequestDate,
				})
			}
		}

		if len(envelope.UsagePeriods) > 0 {
			for _, period := range envelope.UsagePeriods {
				for _, product := range period.UsageProducts {
					emit(period.Month, product)
				}
			}
			continue
		}
		for _, product := range envelope.Products {
			emit("", product)
		}
	}

	return rows
}
