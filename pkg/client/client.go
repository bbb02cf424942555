// Package client is the Go producer library for a conductor server. A
// producer registers its schema once, keeps the returned UUID, and then
// emits data packets against it.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/conductor-telemetry/conductor/pkg/codec"
	"github.com/conductor-telemetry/conductor/pkg/models"
	"github.com/conductor-telemetry/conductor/pkg/retry"
	"github.com/conductor-telemetry/conductor/pkg/schema"
	"github.com/conductor-telemetry/conductor/pkg/tlsutil"
)

// Options configures a Client.
type Options struct {
	// Format selects the wire encoding. Defaults to JSON.
	Format codec.Format
	// APIKey is sent as a bearer token when set.
	APIKey string
	// Timeout bounds each HTTP request. Defaults to 10s.
	Timeout time.Duration
	// Retry controls retries on transient transport errors. Zero value
	// disables retries.
	Retry retry.Config
	// TLS client certificate and CA paths, for servers running HTTPS.
	CertFile           string
	KeyFile            string
	CAFile             string
	InsecureSkipVerify bool
}

// Client talks to a conductor server on behalf of one or more producers.
type Client struct {
	baseURL string
	format  codec.Format
	apiKey  string
	retry   retry.Config
	http    *http.Client
}

// New creates a client for the server at baseURL, e.g. "http://localhost:9090".
func New(baseURL string, opts Options) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", baseURL, err)
	}
	format := opts.Format
	if format == "" {
		format = codec.JSON
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.CertFile != "" || opts.CAFile != "" || opts.InsecureSkipVerify {
		tlsConfig, err := tlsutil.LoadClientTLSConfig(opts.CertFile, opts.KeyFile, opts.CAFile, opts.InsecureSkipVerify)
		if err != nil {
			return nil, fmt.Errorf("failed to build TLS config: %w", err)
		}
		transport.TLSClientConfig = tlsConfig
	}

	return &Client{
		baseURL: baseURL,
		format:  format,
		apiKey:  opts.APIKey,
		retry:   opts.Retry,
		http:    &http.Client{Timeout: timeout, Transport: transport},
	}, nil
}

// Register registers a producer and returns its UUID. Server-side
// rejections come back as *models.ServerError.
func (c *Client) Register(ctx context.Context, name string, s schema.Schema) (string, error) {
	return c.register(ctx, models.Registration{Name: name, Schema: s})
}

// RegisterWithID registers a producer under a caller-chosen ID instead
// of a server-generated UUID.
func (c *Client) RegisterWithID(ctx context.Context, name, id string, s schema.Schema) (string, error) {
	return c.register(ctx, models.Registration{Name: name, Schema: s, UseCustomID: id})
}

func (c *Client) register(ctx context.Context, reg models.Registration) (string, error) {
	var result models.RegistrationResult
	if err := c.post(ctx, "/v1/producer/register", reg, &result); err != nil {
		return "", err
	}
	if err := result.Error.Err(); err != nil {
		return "", err
	}
	return result.UUID, nil
}

// Emit sends a data packet; the server stamps the row with its own
// receive time.
func (c *Client) Emit(ctx context.Context, uuid string, data map[string]interface{}) error {
	return c.emit(ctx, models.Emit{UUID: uuid, Data: data})
}

// EmitAt sends a data packet stamped with the given time.
func (c *Client) EmitAt(ctx context.Context, uuid string, ts time.Time, data map[string]interface{}) error {
	return c.emit(ctx, models.Emit{UUID: uuid, Timestamp: uint64(ts.UnixMilli()), Data: data})
}

func (c *Client) emit(ctx context.Context, e models.Emit) error {
	var result models.EmitResult
	if err := c.post(ctx, "/v1/producer/emit", e, &result); err != nil {
		return err
	}
	return result.Error.Err()
}

// IsRegistered reports whether the UUID is known to the server.
func (c *Client) IsRegistered(ctx context.Context, uuid string) (bool, error) {
	req, err := c.newRequest(ctx, "GET", "/v1/producer/check?uuid="+url.QueryEscape(uuid), nil)
	if err != nil {
		return false, err
	}
	resp, err := c.doWithRetry(ctx, req, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected status %d from check", resp.StatusCode)
	}
}

// ProducerInfo is one registered producer as reported by the server.
type ProducerInfo struct {
	Name   string        `json:"name"`
	UUID   string        `json:"uuid"`
	Schema schema.Schema `json:"schema"`
}

// ListProducers returns all producers registered on the server.
func (c *Client) ListProducers(ctx context.Context) ([]ProducerInfo, error) {
	req, err := c.newRequest(ctx, "GET", "/v1/producers", nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Producers []ProducerInfo `json:"producers"`
	}
	httpResp, err := c.doWithRetry(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from list", httpResp.StatusCode)
	}
	if err := codec.Decode(codec.JSON, httpResp.Body, &resp); err != nil {
		return nil, err
	}
	return resp.Producers, nil
}

// Status fetches the server status document as raw key/value pairs.
func (c *Client) Status(ctx context.Context) (map[string]interface{}, error) {
	req, err := c.newRequest(ctx, "GET", "/v1/status", nil)
	if err != nil {
		return nil, err
	}
	httpResp, err := c.doWithRetry(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from status", httpResp.StatusCode)
	}
	var out map[string]interface{}
	if err := codec.Decode(codec.JSON, httpResp.Body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", c.format.ContentType())
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

// doWithRetry runs the request, retrying transient transport failures.
// body is re-supplied on each attempt so retries do not reuse a drained
// reader.
func (c *Client) doWithRetry(ctx context.Context, req *http.Request, body []byte) (*http.Response, error) {
	var resp *http.Response
	attempt := func() error {
		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
		}
		r, err := c.http.Do(req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}

	if c.retry.MaxRetries == 0 {
		if err := attempt(); err != nil {
			return nil, err
		}
		return resp, nil
	}
	if err := retry.Do(ctx, c.retry, attempt); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, path string, payload, result interface{}) error {
	body, err := codec.Marshal(c.format, payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := c.newRequest(ctx, "POST", path, body)
	if err != nil {
		return err
	}
	resp, err := c.doWithRetry(ctx, req, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	return codec.Decode(c.format, resp.Body, result)
}
