// Package info implements the catalog info port over the upstream catalog
// service's HTTP API. Lookups run behind a circuit breaker so a degraded
// catalog cannot stall the stock level read path.
package info

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/info"
	"stockledger/pkg/logger"
)

// ClientConfig configures the catalog client.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Client resolves product and location display attributes.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

var _ info.Provider = (*Client)(nil)

// NewClient creates a catalog client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 3 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 5,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Product resolves one product's display attributes.
func (c *Client) Product(ctx context.Context, productID id.ID) (*info.Product, error) {
	var product info.Product
	url := fmt.Sprintf("%s/api/v1/products/%s", c.baseURL, productID)
	if err := c.getJSON(ctx, url, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// Location resolves one location's display attributes.
func (c *Client) Location(ctx context.Context, locationID id.ID) (*info.Location, error) {
	var location info.Location
	url := fmt.Sprintf("%s/api/v1/locations/%s", c.baseURL, locationID)
	if err := c.getJSON(ctx, url, &location); err != nil {
		return nil, err
	}
	return &location, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("catalog request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decode catalog response: %w", err)
		}
		return nil, nil
	})
	return err
}
