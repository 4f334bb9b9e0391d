// Package readiness decides whether the remote billing data for a month
// is finalized enough to be worth a full crawl. It samples a handful of
// contracts instead of spending quota on all of them.
package readiness

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hyperbilling/akamai-usage-collector/pkg/billing"
	"github.com/hyperbilling/akamai-usage-collector/pkg/collector"
	"github.com/hyperbilling/akamai-usage-collector/pkg/ratelimit"
)

// DefaultSampleSize is the maximum number of contracts probed.
const DefaultSampleSize = 5

// API is the slice of the billing client the probe needs.
type API interface {
	ListProducts(ctx context.Context, contractID, accountKey, start, end string) (json.RawMessage, error)
	ProductUsage(ctx context.Context, contractID, accountKey, productID, month string) (json.RawMessage, error)
}

// Verdict is the outcome of one readiness probe.
type Verdict struct {
	// SampleCount is how many contracts were probed.
	SampleCount int

	// Statuses tallies dataStatus tags across successfully probed samples.
	Statuses map[string]int

	// Details holds one human-readable line per sample.
	Details []string

	// Ready is true when no sample is still collecting and at least one
	// status was observed. All samples erroring means NOT ready: absence
	// of signal is not readiness.
	Ready bool
}

// Report renders the verdict for notifications.
func (v *Verdict) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Probed %d sample contract(s):\n", v.SampleCount)

	statuses := make([]string, 0, len(v.Statuses))
	for status := range v.Statuses {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		fmt.Fprintf(&b, "  %s: %d\n", status, v.Statuses[status])
	}

	b.WriteString("\n")
	b.WriteString(strings.Join(v.Details, "\n"))
	return b.String()
}

// Probe samples contracts to determine collection readiness.
type Probe struct {
	api        API
	limiter    *ratelimit.Limiter
	sampleSize int
	logger     zerolog.Logger
}

// New creates a Probe. A sampleSize <= 0 selects DefaultSampleSize.
func New(api API, limiter *ratelimit.Limiter, sampleSize int, logger zerolog.Logger) *Probe {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &Probe{
		api:        api,
		limiter:    limiter,
		sampleSize: sampleSize,
		logger:     logger,
	}
}

// Check probes an evenly-spaced sample of contracts and tallies the
// dataStatus of each sample's first product. Per-sample failures become
// detail lines, never probe failures; the only error return is context
// cancellation while waiting on the rate limiter.
func (p *Probe) Check(ctx context.Context, contracts []collector.Contract, month, nextMonth string) (*Verdict, error) {
	samples := Sample(contracts, p.sampleSize)

	verdict := &Verdict{
		SampleCount: len(samples),
		Statuses:    make(map[string]int),
	}

	for _, contract := range samples {
		detail, status, err := p.probeContract(ctx, contract, month, nextMonth)
		if err != nil {
			return nil, err
		}
		verdict.Details = append(verdict.Details, detail)
		if status != "" {
			verdict.Statuses[status]++
		}
	}

	collecting := verdict.Statuses[billing.StatusCollecting]
	verdict.Ready = collecting == 0 && len(verdict.Statuses) > 0

	p.logger.Info().
		Bool("ready", verdict.Ready).
		Int("samples", verdict.SampleCount).
		Int("collecting", collecting).
		Str("billing_month", month).
		Msg("Readiness verdict")

	return verdict, nil
}

// probeContract checks one sample. A returned empty status means the
// sample produced no signal (listing failed, no products, usage failed).
func (p *Probe) probeContract(ctx context.Context, contract collector.Contract, month, nextMonth string) (detail, status string, err error) {
	if err := p.limiter.Acquire(ctx); err != nil {
		return "", "", err
	}
	raw, apiErr := p.api.ListProducts(ctx, contract.ContractID, contract.AccountKey, month, nextMonth)
	if apiErr != nil || len(raw) == 0 {
		return fmt.Sprintf("  %s (%s): listing failed - %v", contract.ContractID, contract.CompanyName, apiErr), "", nil
	}

	products := billing.ExtractProducts(raw)
	if len(products) == 0 {
		return fmt.Sprintf("  %s (%s): no products", contract.ContractID, contract.CompanyName), "", nil
	}

	// The first product is representative: data for a month finalizes
	// per account, not per product.
	first := products[0]

	if err := p.limiter.Acquire(ctx); err != nil {
		return "", "", err
	}
	usage, apiErr := p.api.ProductUsage(ctx, contract.ContractID, contract.AccountKey, first.ProductID, month)
	if apiErr != nil || len(usage) == 0 {
		return fmt.Sprintf("  %s (%s): usage query failed - %v", contract.ContractID, contract.CompanyName, apiErr), "", nil
	}

	status = billing.DataStatus(usage)
	return fmt.Sprintf("  %s (%s): %s", contract.ContractID, contract.CompanyName, status), status, nil
}

// Sample selects up to max contracts at evenly-spaced indices. The
// selection is deterministic: the same input always yields the same
// sample, so repeated probes compare like with like.
func Sample(contracts []collector.Contract, max int) []collector.Contract {
	n := len(contracts)
	if n == 0 || max <= 0 {
		return nil
	}

	count := max
	if n < count {
		count = n
	}
	step := n / count
	if step < 1 {
		step = 1
	}

	samples := make([]collector.Contract, 0, count)
	for i := 0; i < count; i++ {
		samples = append(samples, contracts[i*step])
	}
	return samples
}
