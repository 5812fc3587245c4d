// Package gifs proxies GIF search to the Giphy API.
package gifs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/ringer-im/server/shared/httpclient"
)

const searchEndpoint = "https://api.giphy.com/v1/gifs/search"

type Client struct {
	apiKey string
	client *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey: apiKey,
		client: httpclient.New(httpclient.WithTimeout(httpclient.TimeoutMedium)),
	}
}

// Search returns the raw Giphy response body; the mobile client parses
// the provider format itself.
func (c *Client) Search(ctx context.Context, query string) ([]byte, error) {
	params := url.Values{
		"api_key": {c.apiKey},
		"q":       {query},
		"limit":   {"25"},
		"rating":  {"pg-13"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		searchEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build gif search request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gif search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gif search: provider returned %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
