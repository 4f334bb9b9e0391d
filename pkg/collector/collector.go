// Package collector implements the concurrent usage harvest: a bounded
// worker pool fans out over contracts, each worker traverses one
// contract's product hierarchy sequentially, and a single consumer merges
// completed results. Workers never touch shared maps.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/hyperbilling/akamai-usage-collector/pkg/billing"
	"github.com/hyperbilling/akamai-usage-collector/pkg/ratelimit"
)

// DefaultWorkers bounds simultaneous in-flight contract traversals. The
// rate limiter bounds request rate; this bounds memory and connection use.
const DefaultWorkers = 20

// Prometheus metrics for collection runs.
var (
	contractsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_contracts_processed_total",
		Help: "Total contracts processed by outcome",
	}, []string{"outcome"})

	leafFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collector_leaf_failures_total",
		Help: "Total usage queries skipped due to per-leaf errors",
	})

	keyCollisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collector_key_collisions_total",
		Help: "Total composite key collisions detected during merge",
	})
)

// API is the slice of the billing client the collector needs.
type API interface {
	ListProducts(ctx context.Context, contractID, accountKey, start, end string) (json.RawMessage, error)
	ProductUsage(ctx context.Context, contractID, accountKey, productID, month string) (json.RawMessage, error)
	ReportingGroupUsage(ctx context.Context, accountKey string, reportingGroupID int64, productID, month string) (json.RawMessage, error)
}

// Collector harvests usage data for every contract.
type Collector struct {
	api     API
	limiter *ratelimit.Limiter
	workers int
	logger  zerolog.Logger
}

// New creates a Collector. A workers value <= 0 selects DefaultWorkers.
func New(api API, limiter *ratelimit.Limiter, workers int, logger zerolog.Logger) *Collector {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Collector{
		api:     api,
		limiter: limiter,
		workers: workers,
		logger:  logger,
	}
}

// Collect harvests all contracts for the billing month and returns the
// merged result. The call is synchronous; internal concurrency is fully
// encapsulated. Per-contract failures land in the failure ledger, they
// never abort the run.
func (c *Collector) Collect(ctx context.Context, contracts []Contract, month, nextMonth string) *Result {
	start := time.Now()
	total := len(contracts)

	c.logger.Info().
		Int("contracts", total).
		Int("workers", c.workers).
		Str("billing_month", month).
		Msg("Starting collection")

	queue := make(chan Contract)
	results := make(chan *ContractResult, total)

	go func() {
		defer close(queue)
		for _, contract := range contracts {
			select {
			case queue <- contract:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for contract := range queue {
				results <- c.safeProcess(ctx, contract, month, nextMonth)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// Single consumer: merging happens here and only here.
	result := newResult()
	done := 0
	for res := range results {
		done++
		result.absorb(res, c.logger)

		if res.Success {
			contractsProcessedTotal.WithLabelValues("ok").Inc()
			c.logger.Info().
				Str("contract_id", res.Contract.ContractID).
				Str("company", res.Contract.CompanyName).
				Msgf("[%d/%d] OK", done, total)
		} else {
			contractsProcessedTotal.WithLabelValues("fail").Inc()
			c.logger.Warn().
				Str("contract_id", res.Contract.ContractID).
				Str("company", res.Contract.CompanyName).
				Str("reason", res.Reason).
				Msgf("[%d/%d] FAIL", done, total)
		}
	}

	c.logger.Info().
		Int("success", result.SuccessCount).
		Int("failed", len(result.Failed)).
		Int("product_usage_keys", len(result.ProductUsage)).
		Int("reporting_group_usage_keys", len(result.ReportingGroupUsage)).
		Dur("duration", time.Since(start)).
		Msg("Collection complete")

	return result
}

// safeProcess converts a worker panic into a failed ContractResult so one
// contract's crash cannot take down the pool.
func (c *Collector) safeProcess(ctx context.Context, contract Contract, month, nextMonth string) (res *ContractResult) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Str("contract_id", contract.ContractID).
				Interface("panic", r).
				Msg("Contract traversal panicked")
			res = failedResult(contract, fmt.Sprintf("unexpected panic: %v", r))
		}
	}()
	return c.processContract(ctx, contract, month, nextMonth)
}

// processContract traverses one contract end-to-end: product listing,
// then per-product usage, then per-reporting-group usage. Leaf failures
// are skipped; only a failed listing fails the contract.
func (c *Collector) processContract(ctx context.Context, contract Contract, month, nextMonth string) *ContractResult {
	res := &ContractResult{
		Contract:            contract,
		ProductUsage:        make(map[string]UsageRecord),
		ReportingGroupUsage: make(map[string]UsageRecord),
	}

	if err := c.limiter.Acquire(ctx); err != nil {
		return failedResult(contract, err.Error())
	}
	raw, err := c.api.ListProducts(ctx, contract.ContractID, contract.AccountKey, month, nextMonth)
	if err != nil {
		return failedResult(contract, fmt.Sprintf("list products: %v", err))
	}
	if len(raw) == 0 {
		return failedResult(contract, "empty products payload")
	}

	res.Products = raw
	products := billing.ExtractProducts(raw)
	if len(products) == 0 {
		res.Success = true
		res.Reason = "no products in use"
		return res
	}

	for _, product := range products {
		if product.ProductID == "" {
			continue
		}

		if err := c.limiter.Acquire(ctx); err != nil {
			return failedResult(contract, err.Error())
		}
		usage, err := c.api.ProductUsage(ctx, contract.ContractID, contract.AccountKey, product.ProductID, month)
		if err != nil {
			// Leaf failure: the record is simply absent from results.
			leafFailuresTotal.Inc()
			c.logger.Warn().
				Err(err).
				Str("contract_id", contract.ContractID).
				Str("product_id", product.ProductID).
				Msg("Product usage query failed, skipping leaf")
		} else {
			res.ProductUsage[UsageKey(contract.ContractID, product.ProductID)] = UsageRecord{
				ContractID:  contract.ContractID,
				AccountKey:  contract.AccountKey,
				CompanyName: contract.CompanyName,
				ProductID:   product.ProductID,
				ProductName: product.ProductName,
				Data:        usage,
			}
		}

		for _, rg := range product.ReportingGroups {
			if rg.ReportingGroupID == 0 {
				continue
			}

			if err := c.limiter.Acquire(ctx); err != nil {
				return failedResult(contract, err.Error())
			}
			rgUsage, err := c.api.ReportingGroupUsage(ctx, contract.AccountKey, rg.ReportingGroupID, product.ProductID, month)
			if err != nil {
				leafFailuresTotal.Inc()
				c.logger.Warn().
					Err(err).
					Str("contract_id", contract.ContractID).
					Str("product_id", product.ProductID).
					Int64("reporting_group_id", rg.ReportingGroupID).
					Msg("Reporting group usage query failed, skipping leaf")
				continue
			}

			res.ReportingGroupUsage[ReportingGroupKey(contract.ContractID, product.ProductID, rg.ReportingGroupID)] = UsageRecord{
				ContractID:         contract.ContractID,
				AccountKey:         contract.AccountKey,
				CompanyName:        contract.CompanyName,
				ProductID:          product.ProductID,
				ProductName:        product.ProductName,
				ReportingGroupID:   rg.ReportingGroupID,
				ReportingGroupName: rg.ReportingGroupName,
				Data:               rgUsage,
			}
		}
	}

	// Traversal completed; leaf gaps do not demote the contract.
	res.Success = true
	return res
}

func failedResult(contract Contract, reason string) *ContractResult {
	return &ContractResult{
		Contract: contract,
		Success:  false,
		Reason:   reason,
	}
}
