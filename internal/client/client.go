// Package client is the worker-side HTTP client for the Memory API.
//
// It mirrors the API's wire contract and is the only way the automation
// worker and its handler modules touch tenant memory.
package client

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

	"memorykeep/pkg/memorykeep"
)

const defaultRequestTimeout = 10 * time.Second

// Client calls the Memory API on behalf of tenant credentials.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New builds a Client for the Memory API at baseURL.
//
// timeout bounds every single request; zero keeps a conservative default so
// one slow call cannot stall a whole worker cycle indefinitely.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("new memory client: empty base url")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("new memory client: parse base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("new memory client: base url must include scheme and host")
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type readResponse struct {
	Memory json.RawMessage   `json:"memory"`
	Format memorykeep.Format `json:"format"`
}

// Read fetches one category's memory. The boolean reports presence; a 404
// from the API is absence, not an error.
func (c *Client) Read(
	ctx context.Context,
	credential string,
	category string,
) (memorykeep.Payload, bool, error) {
	endpoint := fmt.Sprintf("%s/api/get-memory?type=%s", c.baseURL, url.QueryEscape(category))
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return memorykeep.Payload{}, false, fmt.Errorf("memory read %s: %w", category, err)
	}
	request.Header.Set("Authorization", bearerPrefix+credential)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return memorykeep.Payload{}, false, fmt.Errorf(
			"memory read %s: %w: %w", category, memorykeep.ErrRemoteUnavailable, err,
		)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotFound {
		return memorykeep.Payload{}, false, nil
	}
	if response.StatusCode != http.StatusOK {
		return memorykeep.Payload{}, false, fmt.Errorf(
			"memory read %s: %w", category, statusError(response),
		)
	}

	var decoded readResponse
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return memorykeep.Payload{}, false, fmt.Errorf("memory read %s: decode response: %w", category, err)
	}

	payload := memorykeep.Payload{Format: decoded.Format}
	switch decoded.Format {
	case memorykeep.FormatStructured:
		payload.JSON = decoded.Memory
	case memorykeep.FormatRaw:
		if err := json.Unmarshal(decoded.Memory, &payload.Text); err != nil {
			return memorykeep.Payload{}, false, fmt.Errorf("memory read %s: decode text memory: %w", category, err)
		}
	default:
		return memorykeep.Payload{}, false, fmt.Errorf("memory read %s: unknown format %q", category, decoded.Format)
	}

	return payload, true, nil
}

// Append logs one entry under a category.
func (c *Client) Append(ctx context.Context, credential string, category string, entry any) error {
	if err := c.post(ctx, "/api/log-memory", credential, category, entry); err != nil {
		return fmt.Errorf("memory append %s: %w", category, err)
	}

	return nil
}

// Overwrite replaces a category's memory with entry.
func (c *Client) Overwrite(ctx context.Context, credential string, category string, entry any) error {
	if err := c.post(ctx, "/api/overwrite-memory", credential, category, entry); err != nil {
		return fmt.Errorf("memory overwrite %s: %w", category, err)
	}

	return nil
}

const bearerPrefix = "Bearer "

func (c *Client) post(
	ctx context.Context,
	path string,
	credential string,
	category string,
	entry any,
) error {
	body, err := json.Marshal(map[string]any{"type": category, "entry": entry})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	request, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body),
	)
	if err != nil {
		return err
	}
	request.Header.Set("Authorization", bearerPrefix+credential)
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %w", memorykeep.ErrRemoteUnavailable, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return statusError(response)
	}

	return nil
}

// statusError maps a non-2xx response onto the error taxonomy, keeping the
// API's error body as detail.
func statusError(response *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(response.Body, 512))

	detail := fmt.Sprintf("status %d", response.StatusCode)
	var decoded struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &decoded); err == nil && decoded.Error != "" {
		detail = fmt.Sprintf("status %d: %s", response.StatusCode, decoded.Error)
	}

	switch response.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", memorykeep.ErrUnauthenticated, detail)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", memorykeep.ErrUnauthorized, detail)
	default:
		return fmt.Errorf("%s", detail)
	}
}
