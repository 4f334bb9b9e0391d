// Command akamai-collector runs one monthly collection pass: list
// contracts from the HyperBilling directory, probe readiness, crawl the
// Akamai Billing API, and load the flattened usage into BigQuery.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hyperbilling/akamai-usage-collector/pkg/billing"
	"github.com/hyperbilling/akamai-usage-collector/pkg/cache"
	"github.com/hyperbilling/akamai-usage-collector/pkg/collector"
	"github.com/hyperbilling/akamai-usage-collector/pkg/config"
	"github.com/hyperbilling/akamai-usage-collector/pkg/hyperbill"
	"github.com/hyperbilling/akamai-usage-collector/pkg/logging"
	"github.com/hyperbilling/akamai-usage-collector/pkg/notify"
	"github.com/hyperbilling/akamai-usage-collector/pkg/ratelimit"
	"github.com/hyperbilling/akamai-usage-collector/pkg/readiness"
	"github.com/hyperbilling/akamai-usage-collector/pkg/transform"
	"github.com/hyperbilling/akamai-usage-collector/pkg/warehouse"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "akamai-collector: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.Setup(logging.Config{Level: logging.LogLevel(cfg.LogLevel)})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, logger)
	}

	nextMonth, err := config.NextMonth(cfg.BillingMonth)
	if err != nil {
		return err
	}

	notifier := notify.New(cfg.WebhookURL, logger)

	// Optional response cache; the pipeline runs identically without it.
	var responseCache *cache.Manager
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).
				Msg("Redis unreachable, running without response cache")
		} else {
			responseCache = cache.NewManager(redisClient, cfg.CacheTTL)
			defer redisClient.Close()
		}
	}

	billingClient, err := billing.New(billing.Config{
		BaseURL:      cfg.AkamaiBaseURL,
		ClientToken:  cfg.AkamaiClientToken,
		ClientSecret: cfg.AkamaiClientSecret,
		AccessToken:  cfg.AkamaiAccessToken,
		Cache:        responseCache,
	}, logging.NewLogger("billing"))
	if err != nil {
		return err
	}

	limiter, err := ratelimit.New(cfg.RateLimitPerMinute, logging.NewLogger("ratelimit"))
	if err != nil {
		return err
	}

	directory, err := hyperbill.New(hyperbill.Config{
		BaseURL:       cfg.HyperBillingURL,
		SessionCookie: cfg.HyperBillingCookie,
	}, logger)
	if err != nil {
		return err
	}

	contracts, err := directory.Contracts(ctx)
	if err != nil {
		notifier.Sendf(ctx, "Akamai collection %s aborted: %v", cfg.BillingMonth, err)
		return err
	}
	if len(contracts) == 0 {
		logger.Warn().Msg("Contract directory is empty, nothing to collect")
		notifier.Sendf(ctx, "Akamai collection %s: contract directory is empty, nothing to do", cfg.BillingMonth)
		return nil
	}

	logger.Info().
		Int("contracts", len(contracts)).
		Str("billing_month", cfg.BillingMonth).
		Msg("Starting collection run")

	probe := readiness.New(billingClient, limiter, cfg.ReadinessSamples, logging.NewLogger("readiness"))
	verdict, err := probe.Check(ctx, contracts, cfg.BillingMonth, nextMonth)
	if err != nil {
		return fmt.Errorf("readiness probe: %w", err)
	}
	if !verdict.Ready {
		logger.Info().Str("billing_month", cfg.BillingMonth).
			Msg("Billing data still collecting, try again later")
		notifier.Sendf(ctx, "Akamai billing data for %s is not finalized yet.\n%s",
			cfg.BillingMonth, verdict.Report())
		return nil
	}

	c := collector.New(billingClient, limiter, cfg.Workers, logging.NewLogger("collector"))
	result := c.Collect(ctx, contracts, cfg.BillingMonth, nextMonth)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("collection interrupted: %w", err)
	}

	productRows := transform.FlattenProducts(result.Products, cfg.BillingMonth)
	usageRows := transform.FlattenProductUsage(result.ProductUsage, cfg.BillingMonth)
	rgRows := transform.FlattenReportingGroupUsage(result.ReportingGroupUsage, cfg.BillingMonth)

	wh, err := warehouse.New(ctx, warehouse.Config{
		ProjectID:       cfg.BigQueryProject,
		Dataset:         cfg.BigQueryDataset,
		CredentialsJSON: []byte(cfg.CredentialsJSON),
	}, logger)
	if err != nil {
		return err
	}
	defer wh.Close()

	for _, load := range []struct {
		table string
		rows  any
	}{
		{table: "products", rows: productRows},
		{table: "product_usage", rows: usageRows},
		{table: "reporting_group_usage", rows: rgRows},
	} {
		if err := wh.Load(ctx, load.table, load.rows); err != nil {
			notifier.Sendf(ctx, "Akamai collection %s failed during warehouse load: %v", cfg.BillingMonth, err)
			return err
		}
	}

	summary := runSummary(cfg.BillingMonth, result, len(productRows)+len(usageRows)+len(rgRows))
	logger.Info().
		Int("succeeded", result.SuccessCount).
		Int("failed", len(result.Failed)).
		Msg("Collection run finished")
	notifier.Send(ctx, summary)

	return nil
}

// runSummary renders the notification body. Per-contract failures are
// listed but do not fail the run.
func runSummary(month string, result *collector.Result, rowCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Akamai collection %s finished: %d contract(s) succeeded, %d failed, %d row(s) loaded.\n",
		month, result.SuccessCount, len(result.Failed), rowCount)

	if len(result.Failed) > 0 {
		b.WriteString("\nFailed contracts:\n")
		for _, failure := range result.Failed {
			fmt.Fprintf(&b, "  %s (%s): %s\n", failure.ContractID, failure.CompanyName, failure.Reason)
		}
	}
	return b.String()
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info().Str("addr", addr).Msg("Serving Prometheus metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("Metrics server stopped")
	}
}
