package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/proxy"
)

const (
	// DefaultTimeout bounds one direct call.
	DefaultTimeout = 5 * time.Second
	// MinTimeout and MaxTimeout bound configurable call timeouts.
	MinTimeout = time.Second
	MaxTimeout = 10 * time.Second

	maxResponseSize = 1 << 20
)

// Client issues direct calls to peers. It never retries.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	proxyAddr  string
}

// Option configures the Client.
type Option func(*Client)

// WithTimeout sets the per-call timeout, clamped to [MinTimeout, MaxTimeout].
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = ClampTimeout(d)
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithSOCKS5 routes every call through the SOCKS5 proxy at addr (host:port).
func WithSOCKS5(addr string) Option {
	return func(c *Client) {
		c.proxyAddr = addr
	}
}

// ClampTimeout limits d to [MinTimeout, MaxTimeout]; zero means DefaultTimeout.
func ClampTimeout(d time.Duration) time.Duration {
	switch {
	case d == 0:
		return DefaultTimeout
	case d < MinTimeout:
		return MinTimeout
	case d > MaxTimeout:
		return MaxTimeout
	}
	return d
}

// NewClient creates a direct-call client.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		if c.proxyAddr != "" {
			dialer, err := proxy.SOCKS5("tcp", c.proxyAddr, nil, proxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("transport: socks5 %s: %w", c.proxyAddr, err)
			}
			cd, ok := dialer.(proxy.ContextDialer)
			if !ok {
				return nil, fmt.Errorf("transport: socks5 dialer does not support contexts")
			}
			tr.Proxy = nil
			tr.DialContext = cd.DialContext
		}
		c.httpClient = &http.Client{Transport: tr}
	}
	return c, nil
}

// Timeout returns the per-call timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Call posts req to the peer at address and returns its reply.
//
// Errors match ErrTimeout, ErrUnreachable or ErrRejected. A reply with
// status "failure" is returned without error; check Response.OK.
func (c *Client) Call(ctx context.Context, address string, req *Request) (*Response, error) {
	if address == "" {
		return nil, &NetworkError{Err: errors.New("peer has no address")}
	}
	url := strings.TrimRight(address, "/") + DirectPath

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("transport: marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &NetworkError{Err: err, URL: url}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, uuid.NewString())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, &TimeoutError{URL: url, Timeout: c.timeout}
		}
		return nil, &NetworkError{Err: err, URL: url}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, &TimeoutError{URL: url, Timeout: c.timeout}
		}
		return nil, &NetworkError{Err: err, URL: url}
	}

	var out Response
	decodeErr := json.Unmarshal(data, &out)

	if resp.StatusCode >= 400 {
		msg := strings.TrimSpace(string(data))
		if decodeErr == nil && out.Error != "" {
			msg = out.Error
		}
		return nil, &PeerError{
			StatusCode: resp.StatusCode,
			Message:    msg,
			RequestID:  resp.Header.Get(RequestIDHeader),
		}
	}
	if decodeErr != nil {
		return nil, &PeerError{StatusCode: resp.StatusCode, Message: "malformed response"}
	}
	return &out, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
