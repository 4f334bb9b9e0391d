package hyperbill

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

const directoryFixture = `{
	"data": [
		{
			"name": "Globex",
			"enabled": true,
			"seq": 2,
			"accounts": [
				{"contract_id": "C-2A", "account_id": "A-2A"}
			]
		},
		{
			"name": "Initech",
			"enabled": false,
			"seq": 1,
			"accounts": [
				{"contract_id": "C-1A", "account_id": "A-1A"}
			]
		},
		{
			"name": "Acme",
			"enabled": true,
			"seq": 1,
			"accounts": [
				{"contract_id": "C-3A", "account_id": "A-3A"},
				{"contract_id": "", "account_id": "A-3B"},
				{"contract_id": "C-3C", "account_id": "A-3C"}
			]
		}
	]
}`

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{BaseURL: server.URL, SessionCookie: "s%3Atest"}, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing base URL", cfg: Config{SessionCookie: "x"}},
		{name: "missing cookie", cfg: Config{BaseURL: "https://hb.example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg, testLogger()); err == nil {
				t.Error("New() error = nil, want validation error")
			}
		})
	}
}

func TestContracts_FiltersAndOrders(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/companies" {
			t.Errorf("request path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(directoryFixture))
	})

	contracts, err := client.Contracts(context.Background())
	if err != nil {
		t.Fatalf("Contracts() error = %v", err)
	}

	// Initech is disabled, the empty contract ID is skipped, Acme (seq 1)
	// precedes Globex (seq 2).
	expected := []string{"C-3A", "C-3C", "C-2A"}
	if len(contracts) != len(expected) {
		t.Fatalf("Contracts() returned %d contracts, want %d", len(contracts), len(expected))
	}
	for i, want := range expected {
		if contracts[i].ContractID != want {
			t.Errorf("contracts[%d] = %s, want %s", i, contracts[i].ContractID, want)
		}
	}
	if contracts[0].CompanyName != "Acme" || contracts[0].AccountKey != "A-3A" {
		t.Errorf("contract identity = %+v", contracts[0])
	}
}

func TestContracts_SendsSessionCookie(t *testing.T) {
	var cookie string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("connect.sid"); err == nil {
			cookie = c.Value
		}
		_, _ = w.Write([]byte(`{"data": []}`))
	})

	if _, err := client.Contracts(context.Background()); err != nil {
		t.Fatalf("Contracts() error = %v", err)
	}
	if cookie != "s%3Atest" {
		t.Errorf("connect.sid cookie = %q, want s%%3Atest", cookie)
	}
}

func TestContracts_ExpiredCookie(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Contracts(context.Background())
	if err == nil {
		t.Fatal("Contracts() error = nil, want cookie error")
	}
	if !strings.Contains(err.Error(), "cookie") {
		t.Errorf("error %q does not mention the cookie", err)
	}
}

func TestContracts_EmptyDirectory(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data": []}`))
	})

	contracts, err := client.Contracts(context.Background())
	if err != nil {
		t.Fatalf("Contracts() error = %v", err)
	}
	if len(contracts) != 0 {
		t.Errorf("Contracts() returned %d contracts, want 0", len(contracts))
	}
}

func TestContracts_MalformedResponse(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>login page</html>`))
	})

	if _, err := client.Contracts(context.Background()); err == nil {
		t.Error("Contracts() error = nil, want decode error")
	}
}
