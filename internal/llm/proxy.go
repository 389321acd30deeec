package llm

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

// ErrBadStatus is returned when the generation proxy answers with a non-2xx
// status.
var ErrBadStatus = errors.New("generation proxy returned an error status")

// ProxyProvider implements Provider against an internal generation proxy
// that accepts {messages:[{role, content}]} and answers in one of the shapes
// understood by DecodeReply.
type ProxyProvider struct {
	url    string
	client *http.Client
}

// NewProxyProvider creates a provider posting to baseURL+path.
func NewProxyProvider(baseURL, path string, client *http.Client) *ProxyProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &ProxyProvider{
		url:    strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/"),
		client: client,
	}
}

func (p *ProxyProvider) Name() string {
	return "proxy"
}

type proxyRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

func (p *ProxyProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	body, err := json.Marshal(proxyRequest{
		Messages:    req.Messages,
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal proxy request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("proxy request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read proxy response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrBadStatus, httpResp.StatusCode,
			truncateRunes(string(respBody), 200))
	}

	reply := DecodeReply(respBody)
	return &CompletionResponse{
		Content: reply.Text,
		Shape:   reply.Shape,
		Model:   req.Model,
	}, nil
}
