package main

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hyperbilling/akamai-usage-collector/pkg/collector"
)

func TestRunSummary_CleanRun(t *testing.T) {
	result := &collector.Result{SuccessCount: 12}

	summary := runSummary("2026-07", result, 3400)

	if !strings.Contains(summary, "12 contract(s) succeeded") {
		t.Errorf("summary missing success count:\n%s", summary)
	}
	if !strings.Contains(summary, "0 failed") {
		t.Errorf("summary missing failure count:\n%s", summary)
	}
	if !strings.Contains(summary, "3400 row(s) loaded") {
		t.Errorf("summary missing row count:\n%s", summary)
	}
	if strings.Contains(summary, "Failed contracts") {
		t.Errorf("clean run must not list failures:\n%s", summary)
	}
}

func TestRunSummary_ListsFailures(t *testing.T) {
	result := &collector.Result{
		SuccessCount: 10,
		Failed: []collector.Failure{
			{ContractID: "C-7", CompanyName: "Globex", Reason: "list products: 503"},
		},
	}

	summary := runSummary("2026-07", result, 900)

	if !strings.Contains(summary, "Failed contracts:") {
		t.Errorf("summary missing failure section:\n%s", summary)
	}
	if !strings.Contains(summary, "C-7 (Globex): list products: 503") {
		t.Errorf("summary missing failure line:\n%s", summary)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	promhttp.Handler().ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != 200 {
		t.Fatalf("metrics endpoint returned %d", resp.StatusCode)
	}

	body := w.Body.String()
	if !strings.Contains(body, "# HELP") || !strings.Contains(body, "# TYPE") {
		t.Error("expected Prometheus format metrics output")
	}
}
