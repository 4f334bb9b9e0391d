// Package testutil provides testing utilities for the usage collector.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock billing endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockBillingAPI is a configurable mock Akamai Billing API server.
type MockBillingAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	RequestsByPath    map[string]int
	LastRequestHeader http.Header
}

// NewMockBillingAPI creates a new mock billing API server.
func NewMockBillingAPI() *MockBillingAPI {
	mock := &MockBillingAPI{
		handlers:       make(map[string]func(w http.ResponseWriter, r *http.Request)),
		RequestsByPath: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.RequestsByPath[r.URL.Path]++
		mock.LastRequestHeader = r.Header.Clone()
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		// Unconfigured paths are a test bug, make them loud.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `{"detail": "no mock for %s"}`, r.URL.Path)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockBillingAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockBillingAPI) Close() {
	m.server.Close()
}

// SetHandler sets a custom handler for a specific path.
func (m *MockBillingAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a static response for a path.
func (m *MockBillingAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetProducts configures the products listing for a contract.
func (m *MockBillingAPI) SetProducts(contractID, body string) {
	m.SetResponse(fmt.Sprintf("/billing/v1/contracts/%s/products", contractID), MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
	})
}

// SetProductUsage configures the daily usage response for a product.
func (m *MockBillingAPI) SetProductUsage(contractID, productID, body string) {
	m.SetResponse(fmt.Sprintf("/billing/v1/contracts/%s/products/%s/usage/daily", contractID, productID), MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
	})
}

// SetReportingGroupUsage configures the daily usage response for a
// reporting group.
func (m *MockBillingAPI) SetReportingGroupUsage(reportingGroupID int64, productID, body string) {
	m.SetResponse(fmt.Sprintf("/billing/v1/reporting-groups/%d/products/%s/usage/daily", reportingGroupID, productID), MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockBillingAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetPathCount returns the number of requests for one path.
func (m *MockBillingAPI) GetPathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestsByPath[path]
}

// ProductsBody renders a products payload in the flat "products" shape.
func ProductsBody(products string) string {
	return fmt.Sprintf(`{"requestDate": "2026-08-02T01:00:00Z", "start": "2026-07", "end": "2026-08", "products": [%s]}`, products)
}

// UsageBody renders a usage payload with the given data status.
func UsageBody(dataStatus string) string {
	return fmt.Sprintf(`{
		"dataStatus": %q,
		"requestDate": "2026-08-02T01:00:00Z",
		"usagePeriods": [
			{
				"region": "GLOBAL",
				"stats": [
					{
						"statType": "Bytes",
						"unit": "GB",
						"isBillable": true,
						"values": [
							{"date": "2026-07-01", "value": 12.5},
							{"date": "2026-07-02", "value": 14.0}
						]
					}
				]
			}
		]
	}`, dataStatus)
}
