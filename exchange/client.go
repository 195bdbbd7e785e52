package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultTimeout = 10 * time.Second

// Client performs signed HTTP calls against the exchange REST API. It does a
// single round trip per call and never retries; retry policy belongs to the
// caller, which is the only place order-state bookkeeping can happen safely.
type Client struct {
	apiKey  string
	signer  *Signer
	baseURL string
	http    *http.Client
}

// NewClient creates a REST client for the given base URL.
func NewClient(apiKey, apiSecret, baseURL string) *Client {
	return &Client{
		apiKey:  apiKey,
		signer:  NewSigner(apiSecret),
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// do sends one signed request. Non-2xx responses with a parseable error body
// come back as *BusinessError; network and decoding failures come back as
// *TransportError. out, when non-nil, receives the decoded 2xx body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	op := method + " " + path

	signedPath := path
	if len(query) > 0 {
		signedPath = path + "?" + query.Encode()
	}

	var payload string
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		payload = string(raw)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+signedPath, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}

	// Timestamp is generated at send time; the server rejects stale signatures.
	timestamp := time.Now().UnixMilli()
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("X-TIMESTAMP", strconv.FormatInt(timestamp, 10))
	req.Header.Set("X-SIGNATURE", c.signer.Sign(timestamp, method, signedPath, payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &apiErr); err != nil || (apiErr.Code == "" && apiErr.Message == "") {
			return &BusinessError{Status: resp.StatusCode, Message: truncate(string(raw), 200)}
		}
		return &BusinessError{Status: resp.StatusCode, Code: apiErr.Code, Message: apiErr.Message}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			// A 2xx we cannot decode leaves the caller as blind as a dropped
			// connection would, so classify it the same way.
			return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
