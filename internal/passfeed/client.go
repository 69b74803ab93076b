// Package passfeed fetches candidate passes from the upstream pass-geometry
// source. The engine treats the feed as opaque: it only consumes the candidate
// list.
package passfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/apogee-systems/passops/internal/models"
)

type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	Retries    int
	HTTPClient *http.Client
}

type Client struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	retries int
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("passfeed base url required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		client:  client,
		timeout: timeout,
		retries: retries,
	}, nil
}

type feedResponse struct {
	Opportunity models.CollectionOpportunity `json:"opportunity"`
	Candidates  []models.AvailablePass       `json:"candidates"`
	Sites       []models.Site                `json:"sites"`
}

// Fetch returns the opportunity, its candidate passes, and the site inventory.
func (c *Client) Fetch(ctx context.Context, opportunityID string) (models.CollectionOpportunity, []models.AvailablePass, []models.Site, error) {
	url := fmt.Sprintf("%s/opportunities/%s/passes", c.baseURL, opportunityID)

	attempts := c.retries + 1
	var lastErr error
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return models.CollectionOpportunity{}, nil, nil, ctx.Err()
		}
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
		if err != nil {
			cancel()
			return models.CollectionOpportunity{}, nil, nil, fmt.Errorf("passfeed build request: %w", err)
		}
		resp, err := c.client.Do(req)
		cancel()
		if err != nil {
			lastErr = err
		} else {
			feed, parseErr := decodeFeed(resp)
			resp.Body.Close()
			if parseErr == nil {
				return feed.Opportunity, feed.Candidates, feed.Sites, nil
			}
			lastErr = parseErr
		}
		if i < attempts-1 {
			time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
		}
	}
	return models.CollectionOpportunity{}, nil, nil, fmt.Errorf("passfeed fetch failed: %w", lastErr)
}

func decodeFeed(resp *http.Response) (feedResponse, error) {
	if resp.StatusCode >= 500 {
		return feedResponse{}, fmt.Errorf("passfeed unavailable: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return feedResponse{}, fmt.Errorf("passfeed rejected request: %s", resp.Status)
	}
	var feed feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return feedResponse{}, fmt.Errorf("passfeed decode response: %w", err)
	}
	return feed, nil
}
