// Package linksafety checks URLs against the Google Safe Browsing API.
package linksafety

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ringer-im/server/shared/httpclient"
)

const lookupEndpoint = "https://safebrowsing.googleapis.com/v4/threatMatches:find"

type Client struct {
	apiKey string
	client *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey: apiKey,
		client: httpclient.NewShort(),
	}
}

type threatEntry struct {
	URL string `json:"url"`
}

type lookupRequest struct {
	Client struct {
		ClientID      string `json:"clientId"`
		ClientVersion string `json:"clientVersion"`
	} `json:"client"`
	ThreatInfo struct {
		ThreatTypes      []string      `json:"threatTypes"`
		PlatformTypes    []string      `json:"platformTypes"`
		ThreatEntryTypes []string      `json:"threatEntryTypes"`
		ThreatEntries    []threatEntry `json:"threatEntries"`
	} `json:"threatInfo"`
}

type lookupResponse struct {
	Matches []json.RawMessage `json:"matches"`
}

// IsSafe reports whether the URL is free of known threat matches.
func (c *Client) IsSafe(ctx context.Context, rawURL string) (bool, error) {
	var body lookupRequest
	body.Client.ClientID = "ringer-server"
	body.Client.ClientVersion = "1.0"
	body.ThreatInfo.ThreatTypes = []string{
		"MALWARE", "SOCIAL_ENGINEERING", "UNWANTED_SOFTWARE", "POTENTIALLY_HARMFUL_APPLICATION",
	}
	body.ThreatInfo.PlatformTypes = []string{"ANY_PLATFORM"}
	body.ThreatInfo.ThreatEntryTypes = []string{"URL"}
	body.ThreatInfo.ThreatEntries = []threatEntry{{URL: rawURL}}

	payload, err := json.Marshal(body)
	if err != nil {
		return false, fmt.Errorf("encode lookup: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		lookupEndpoint+"?key="+c.apiKey, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("build lookup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("link safety lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("link safety lookup: provider returned %d", resp.StatusCode)
	}

	var result lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("decode lookup response: %w", err)
	}
	return len(result.Matches) == 0, nil
}
