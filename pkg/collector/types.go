package collector

import (
	"encoding/json"
	"fmt"
)

// Contract is one top-level collection target, as listed by the contract
// directory. Immutable once listed.
type Contract struct {
	ContractID  string
	AccountKey  string
	CompanyName string
	Seq         int
}

// UsageRecord is the leaf datum for one (contract, product[, reporting
// group]) tuple. Read-only once fetched.
type UsageRecord struct {
	ContractID  string
	AccountKey  string
	CompanyName string
	ProductID   string
	ProductName string

	// Reporting group identity; zero/empty for product-level records.
	ReportingGroupID   int64
	ReportingGroupName string

	// Data is the raw usage payload as returned by the API.
	Data json.RawMessage
}

// ProductListing is the raw products payload of one contract.
type ProductListing struct {
	AccountKey  string
	CompanyName string
	Data        json.RawMessage
}

// ContractResult is the per-contract outcome. Owned by the worker that
// produced it until it is sent on the results channel, then consumed
// exactly once by the merge loop.
type ContractResult struct {
	Contract Contract
	Success  bool

	// Reason holds the failure cause, or a note ("no products in use")
	// on a degenerate success.
	Reason string

	Products            json.RawMessage
	ProductUsage        map[string]UsageRecord
	ReportingGroupUsage map[string]UsageRecord
}

// Failure is one entry in the failure ledger.
type Failure struct {
	ContractID  string
	CompanyName string
	Reason      string
}

// Result is the aggregate of one collection run. Composite keys are
// unique because sub-hierarchies are partitioned by owning contract; a
// collision during merge is a partitioning bug (logged, last writer
// wins).
type Result struct {
	Products            map[string]ProductListing
	ProductUsage        map[string]UsageRecord
	ReportingGroupUsage map[string]UsageRecord
	SuccessCount        int
	Failed              []Failure
}

func newResult() *Result {
	return &Result{
		Products:            make(map[string]ProductListing),
		ProductUsage:        make(map[string]UsageRecord),
		ReportingGroupUsage: make(map[string]UsageRecord),
	}
}

// UsageKey builds the composite key for a product-level usage record.
func UsageKey(contractID, productID string) string {
	return fmt.Sprintf("%s_%s", contractID, productID)
}

// ReportingGroupKey builds the composite key for a reporting-group-level
// usage record.
func ReportingGroupKey(contractID, productID string, reportingGroupID int64) string {
	return fmt.Sprintf("%s_%s_%d", contractID, productID, reportingGroupID)
}
