// Package retrieval talks to the knowledge-retrieval service and caches the
// metadata of the corpus it last answered from.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrBadStatus is returned when the service answers with a non-2xx status.
var ErrBadStatus = errors.New("retrieval service returned an error status")

type retrieveRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"topK"`
}

// Client is a Retriever backed by the service's HTTP endpoint.
type Client struct {
	url    string
	client *http.Client
}

// NewClient creates a client posting to baseURL+path. A nil httpClient uses
// http.DefaultClient; callers bound each call through the context.
func NewClient(baseURL, path string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		url:    strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/"),
		client: httpClient,
	}
}

// URL returns the endpoint the client posts to.
func (c *Client) URL() string {
	return c.url
}

func (c *Client) Retrieve(ctx context.Context, query string, topK int) (*Response, error) {
	body, err := json.Marshal(retrieveRequest{Query: query, TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal retrieval request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("retrieval request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read retrieval response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrBadStatus, httpResp.StatusCode, truncate(string(respBody), 200))
	}

	var resp Response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal retrieval response: %w", err)
	}
	if resp.Results == nil {
		resp.Results = []Hit{}
	}
	return &resp, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
