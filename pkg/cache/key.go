package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached billing API response.
type Key struct {
	// Endpoint is the API path (e.g. "/billing/v1/contracts/C-1/products").
	Endpoint string

	// Params are the query parameters of the request.
	Params url.Values
}

// String generates a deterministic cache key string.
// Format: billing:endpoint:param1=val1:param2=val2
//
// Example:
//
//	billing:billing/v1/contracts/C-1/products:accountSwitchKey=A-1:end=2026-08:start=2026-07
func (k Key) String() string {
	parts := []string{"billing"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Sorted params for determinism.
	if len(k.Params) > 0 {
		keys := make([]string, 0, len(k.Params))
		for key := range k.Params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.Params.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}
