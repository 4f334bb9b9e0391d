package cache

import (
	"net/url"
	"testing"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name     string
		key      Key
		expected string
	}{
		{
			name:     "endpoint only",
			key:      Key{Endpoint: "/billing/v1/contracts/C-1/products"},
			expected: "billing:billing/v1/contracts/C-1/products",
		},
		{
			name: "params sorted",
			key: Key{
				Endpoint: "/billing/v1/contracts/C-1/products",
				Params: url.Values{
					"start":            []string{"2026-07"},
					"accountSwitchKey": []string{"A-1"},
					"end":              []string{"2026-08"},
				},
			},
			expected: "billing:billing/v1/contracts/C-1/products:accountSwitchKey=A-1:end=2026-08:start=2026-07",
		},
		{
			name:     "empty endpoint",
			key:      Key{Endpoint: "/"},
			expected: "billing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestKey_String_Deterministic(t *testing.T) {
	key := Key{
		Endpoint: "/billing/v1/reporting-groups/42/products/P-1/usage/daily",
		Params: url.Values{
			"month":            []string{"2026-07"},
			"accountSwitchKey": []string{"A-9"},
		},
	}

	first := key.String()
	for i := 0; i < 20; i++ {
		if got := key.String(); got != first {
			t.Fatalf("String() not deterministic: %q vs %q", got, first)
		}
	}
}

func TestKey_String_DistinctRequestsDistinctKeys(t *testing.T) {
	a := Key{
		Endpoint: "/billing/v1/contracts/C-1/products/P-1/usage/daily",
		Params:   url.Values{"month": []string{"2026-07"}},
	}
	b := Key{
		Endpoint: "/billing/v1/contracts/C-1/products/P-1/usage/daily",
		Params:   url.Values{"month": []string{"2026-06"}},
	}

	if a.String() == b.String() {
		t.Errorf("different months produced the same key %q", a.String())
	}
}
