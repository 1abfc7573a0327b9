package sourceclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lsats/databridge/internal/config"
)

// IdentityAPIClient fetches institutional identity records (umich_api).
// One person may carry several employment records (empl_rcd); List
// returns one Record per empl_rcd, matching the Silver-source fan-out
// described in spec.md §4.5.1. The same client shape also fetches the
// API's department hierarchy feed (campus/VP area/college), selected via
// listPath so one HTTP client type covers both umich_api entities.
type IdentityAPIClient struct {
	httpClient *http.Client
	baseURL    string
	serviceKey string
	listPath   string
}

// NewIdentityAPIClient builds a client against listPath (e.g. "/people"
// or "/departments"); both umich_api endpoints return full records with
// no separate detail fetch.
func NewIdentityAPIClient(cfg config.IdentityAPIConfig, listPath string) *IdentityAPIClient {
	return &IdentityAPIClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		serviceKey: cfg.ServiceKey,
		listPath:   listPath,
	}
}

func (c *IdentityAPIClient) List(ctx context.Context, since *time.Time) ([]Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.listPath, nil)
	if err != nil {
		return nil, fmt.Errorf("building identity api request: %w", err)
	}
	req.Header.Set("X-Service-Key", c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching identity api %s: %w", c.listPath, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity api %s: unexpected status %d", c.listPath, resp.StatusCode)
	}

	var records []Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding identity api response: %w", err)
	}
	return records, nil
}

// Detail is unsupported: the identity API's list endpoint already returns
// full per-empl_rcd records.
func (c *IdentityAPIClient) Detail(ctx context.Context, externalID string) (Record, error) {
	return nil, ErrNoDetailEndpoint
}
