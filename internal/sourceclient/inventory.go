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

// InventoryClient fetches the inventory agent's per-NIC feed. One computer
// emits one row per network interface; consolidation into a single row per
// (computer_name, serial_number) happens in internal/transform per
// spec.md §4.5.1, not here — this client hands back raw per-NIC records.
type InventoryClient struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
}

func NewInventoryClient(cfg config.InventoryConfig) *InventoryClient {
	return &InventoryClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
	}
}

func (c *InventoryClient) List(ctx context.Context, since *time.Time) ([]Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building inventory request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching inventory feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inventory feed: unexpected status %d", resp.StatusCode)
	}

	var records []Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding inventory feed: %w", err)
	}
	return records, nil
}

// Detail is unsupported: the feed is already per-NIC complete rows.
func (c *InventoryClient) Detail(ctx context.Context, externalID string) (Record, error) {
	return nil, ErrNoDetailEndpoint
}
