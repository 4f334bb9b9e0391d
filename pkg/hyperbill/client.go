// Package hyperbill lists collection targets from the HyperBilling
// contract directory.
package hyperbill

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/hyperbilling/akamai-usage-collector/pkg/collector"
)

const defaultTimeout = 60 * time.Second

// Client reads the contract directory. Authentication is a session
// cookie issued by the directory's login flow.
type Client struct {
	baseURL string
	cookie  string
	http    *http.Client
	logger  zerolog.Logger
}

// Config holds the directory connection settings.
type Config struct {
	// BaseURL is the directory root, e.g. https://hyperbilling.example.com.
	BaseURL string

	// SessionCookie is the connect.sid value of an authenticated session.
	SessionCookie string

	// Timeout bounds one directory request. Zero selects 60s.
	Timeout time.Duration
}

// New creates a directory client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("hyperbill: base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("hyperbill: invalid base URL: %w", err)
	}
	if cfg.SessionCookie == "" {
		return nil, fmt.Errorf("hyperbill: session cookie is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL: cfg.BaseURL,
		cookie:  cfg.SessionCookie,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "hyperbill").Logger(),
	}, nil
}

// directoryEntry is one company in the directory listing.
type directoryEntry struct {
	Name     string `json:"name"`
	Enabled  bool   `json:"enabled"`
	Seq      int    `json:"seq"`
	Accounts []struct {
		ContractID string `json:"contract_id"`
		AccountID  string `json:"account_id"`
	} `json:"accounts"`
}

type directoryResponse struct {
	Data []directoryEntry `json:"data"`
}

// Contracts lists the enabled collection targets, ordered by directory
// sequence. Disabled companies and accounts without a contract ID are
// skipped.
func (c *Client) Contracts(ctx context.Context) ([]collector.Contract, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/companies", nil)
	if err != nil {
		return nil, fmt.Errorf("hyperbill: build request: %w", err)
	}
	req.AddCookie(&http.Cookie{Name: "connect.sid", Value: c.cookie})
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hyperbill: list companies: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("hyperbill: directory rejected session cookie (status %d), cookie likely expired", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hyperbill: directory returned status %d", resp.StatusCode)
	}

	var directory directoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&directory); err != nil {
		return nil, fmt.Errorf("hyperbill: decode directory response: %w", err)
	}

	var contracts []collector.Contract
	for _, entry := range directory.Data {
		if !entry.Enabled {
			continue
		}
		for _, account := range entry.Accounts {
			if account.ContractID == "" {
				continue
			}
			contracts = append(contracts, collector.Contract{
				ContractID:  account.ContractID,
				AccountKey:  account.AccountID,
				CompanyName: entry.Name,
				Seq:         entry.Seq,
			})
		}
	}

	sort.SliceStable(contracts, func(i, j int) bool {
		return contracts[i].Seq < contracts[j].Seq
	})

	c.logger.Info().
		Int("companies", len(directory.Data)).
		Int("contracts", len(contracts)).
		Msg("Contract directory listed")

	return contracts, nil
}
