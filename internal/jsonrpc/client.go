package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

// ErrTransport wraps failures to reach the service or read its reply.
var ErrTransport = errors.New("json-rpc transport error")

// Client calls methods of one JSON-RPC service.
type Client struct {
	url  string
	http *http.Client
}

// NewClient creates a client for the service at url. httpClient may be nil.
func NewClient(url string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{url: url, http: httpClient}
}

// URL returns the service endpoint.
func (c *Client) URL() string {
	return c.url
}

// Call invokes method with the given positional params. The token, when not
// empty, is sent in the Authorization header. When result is non-nil the
// result list is decoded into it. Service errors are returned as *Error;
// transport failures wrap ErrTransport.
func (c *Client) Call(ctx context.Context, token, method string, params []interface{}, result interface{}) error {
	raw := make([]json.RawMessage, len(params))
	for i, p := range params {
		b, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode param %d of %s: %w", i, method, err)
		}
		raw[i] = b
	}
	body, err := json.Marshal(&Request{
		Version: Version,
		Method:  method,
		Params:  raw,
		ID:      uuid.New().String(),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, c.url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s reply: %v", ErrTransport, method, err)
	}
	var out Response
	if err := json.Unmarshal(data, &out); err != nil {
		// Platform services answer errors with status 500 and a JSON body;
		// anything else is a gateway or proxy failure.
		return fmt.Errorf("%w: %s returned %d: %s", ErrTransport, method, resp.StatusCode, truncate(string(data), 200))
	}
	if out.Error != nil {
		return out.Error
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d", ErrTransport, method, resp.StatusCode)
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(out.Result, result); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
