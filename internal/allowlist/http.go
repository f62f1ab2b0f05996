package allowlist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL targets the public Cloudflare API.
const DefaultBaseURL = "https://api.cloudflare.com/client/v4"

// defaultRequestTimeout bounds a single list-API call.
const defaultRequestTimeout = 10 * time.Second

// Config describes the gateway list the client operates on.
type Config struct {
	BaseURL   string
	AccountID string
	ListID    string
	APIToken  string
	// Tag is attached as the description on every value this system
	// appends, so operators can tell these entries apart from manual ones.
	Tag string
}

// HTTPClient is the gateway-list API implementation of Client.
type HTTPClient struct {
	config Config
	client *http.Client
}

// NewHTTPClient builds a list client from config.
func NewHTTPClient(config Config) (*HTTPClient, error) {
	if strings.TrimSpace(config.AccountID) == "" {
		return nil, fmt.Errorf("account id is required")
	}
	if strings.TrimSpace(config.ListID) == "" {
		return nil, fmt.Errorf("list id is required")
	}
	if strings.TrimSpace(config.APIToken) == "" {
		return nil, fmt.Errorf("api token is required")
	}
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = DefaultBaseURL
	}
	return &HTTPClient{
		config: config,
		client: &http.Client{Timeout: defaultRequestTimeout},
	}, nil
}

type listItem struct {
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

type itemsResponse struct {
	Success bool       `json:"success"`
	Result  []listItem `json:"result"`
}

type appendRequest struct {
	Append []listItem `json:"append"`
}

type appendResponse struct {
	Success bool `json:"success"`
}

// Hostnames fetches the full current membership of the list.
func (c *HTTPClient) Hostnames(ctx context.Context) ([]string, error) {
	endpoint := c.itemsURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build list request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch list items: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch list items: unexpected status %d", resp.StatusCode)
	}

	var parsed itemsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 16<<20)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode list items: %w", err)
	}
	if !parsed.Success {
		return nil, fmt.Errorf("fetch list items: api reported failure")
	}

	hostnames := make([]string, 0, len(parsed.Result))
	for _, item := range parsed.Result {
		if item.Value != "" {
			hostnames = append(hostnames, item.Value)
		}
	}
	return hostnames, nil
}

// Append adds one hostname to the list with the configured tag.
func (c *HTTPClient) Append(ctx context.Context, hostname string) error {
	if strings.TrimSpace(hostname) == "" {
		return fmt.Errorf("hostname is required")
	}

	payload, err := json.Marshal(appendRequest{
		Append: []listItem{{Value: hostname, Description: c.config.Tag}},
	})
	if err != nil {
		return fmt.Errorf("marshal append request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.listURL(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build append request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("append %s: %w", hostname, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("append %s: unexpected status %d", hostname, resp.StatusCode)
	}

	var parsed appendResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return fmt.Errorf("decode append response: %w", err)
	}
	if !parsed.Success {
		return fmt.Errorf("append %s: api reported failure", hostname)
	}
	return nil
}

func (c *HTTPClient) listURL() string {
	return fmt.Sprintf("%s/accounts/%s/gateway/lists/%s",
		strings.TrimRight(c.config.BaseURL, "/"),
		url.PathEscape(c.config.AccountID),
		url.PathEscape(c.config.ListID),
	)
}

func (c *HTTPClient) itemsURL() string {
	return c.listURL() + "/items"
}

func (c *HTTPClient) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.config.APIToken)
}

var _ Client = (*HTTPClient)(nil)
