package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/psantana5/charon/pkg/errs"
	"github.com/psantana5/charon/pkg/prompt"
	"github.com/psantana5/charon/pkg/retry"
	"github.com/psantana5/charon/pkg/tracing"
)

// Client talks to a charon daemon
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      retry.Config
}

// NewClient creates a client for the daemon listening on socketPath
func NewClient(socketPath string) *Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
	}
	return NewHTTPClient("http://charon", &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	})
}

// NewHTTPClient creates a client against an arbitrary base URL
func NewHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		retry: retry.Config{
			MaxRetries:     3,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     time.Second,
			Multiplier:     2.0,
		},
	}
}

// SetRetry replaces the retry policy used by Ping
func (c *Client) SetRetry(cfg retry.Config) {
	c.retry = cfg
}

func pathFor(format string, parts ...string) string {
	escaped := make([]interface{}, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return fmt.Sprintf(format, escaped...)
}

// do sends one request. Non-2xx replies become *errs.Error with the kind
// the daemon reported.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	tracing.InjectHTTPHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to daemon failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e ErrorResponse
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = fmt.Sprintf("daemon returned %d: %s", resp.StatusCode, bytes.TrimSpace(data))
		}
		return &errs.Error{Kind: errs.ParseKind(e.Kind), Message: e.Error}
	}

	if out == nil {
		return nil
	}
	switch o := out.(type) {
	case *string:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		*o = string(data)
		return nil
	default:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}
}

// Ping checks that the daemon is up, retrying while it starts
func (c *Client) Ping(ctx context.Context) (*PingResponse, error) {
	var out PingResponse
	err := retry.Do(ctx, c.retry, func() error {
		err := c.do(ctx, http.MethodGet, "/status/ping", nil, &out)
		if err != nil && !retry.IsRetryable(err) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// WriteUnit asks the daemon to install the unit for a package
func (c *Client) WriteUnit(ctx context.Context, name, version, volumeRoot string) (*UnitResponse, error) {
	var out UnitResponse
	req := UnitRequest{Name: name, Version: version, VolumeRoot: volumeRoot}
	if err := c.do(ctx, http.MethodPost, "/control/units", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveUnit asks the daemon to delete the unit for a package
func (c *Client) RemoveUnit(ctx context.Context, name, version string) (*UnitResponse, error) {
	var out UnitResponse
	if err := c.do(ctx, http.MethodDelete, pathFor("/control/units/%s/%s", name, version), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPrompts fetches the prompts a package declares
func (c *Client) GetPrompts(ctx context.Context, name, version string) (prompt.Collection, error) {
	var out prompt.Collection
	if err := c.do(ctx, http.MethodGet, pathFor("/query/prompts/%s/%s", name, version), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetResponses stores prompt responses for a package
func (c *Client) SetResponses(ctx context.Context, name string, responses prompt.Responses) error {
	if responses == nil {
		responses = prompt.Responses{}
	}
	return c.do(ctx, http.MethodPut, pathFor("/query/responses/%s", name), responses, nil)
}

// Command fetches the backend command line for a package
func (c *Client) Command(ctx context.Context, name, version, volumeRoot string) (*CommandResponse, error) {
	var out CommandResponse
	path := pathFor("/query/command/%s/%s", name, version) + "?volume_root=" + url.QueryEscape(volumeRoot)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Metrics fetches the daemon's metrics in Prometheus text format
func (c *Client) Metrics(ctx context.Context) (string, error) {
	var out string
	if err := c.do(ctx, http.MethodGet, "/metrics", nil, &out); err != nil {
		return "", err
	}
	return out, nil
}
