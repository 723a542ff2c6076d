package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/MalithGihan/rabbitflow/internal/validate"
)

const (
	DefaultURL   = "http://localhost:15672"
	DefaultVhost = "/"

	maxBodySize = 32 << 20
)

// Config holds what is needed to reach the management API. URL has no vhost.
type Config struct {
	URL      string
	Login    string
	Password string
	Vhost    string
	Timeout  time.Duration
}

// Observer is told about every management API request.
type Observer func(endpoint string, status int, d time.Duration)

// Client issues read-only queries against the management API. Queue and
// exchange queries are scoped to the current vhost.
type Client struct {
	base       string
	login      string
	password   string
	httpClient *http.Client
	observe    Observer

	mu    sync.RWMutex
	vhost string
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observe = o }
}

func New(cfg Config, opts ...Option) *Client {
	base := strings.TrimRight(cfg.URL, "/")
	if base == "" {
		base = DefaultURL
	}
	vhost := cfg.Vhost
	if vhost == "" {
		vhost = DefaultVhost
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		base:       base,
		login:      cfg.Login,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: timeout},
		vhost:      vhost,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetVhost scopes subsequent queue and exchange queries to name.
func (c *Client) SetVhost(name string) {
	c.mu.Lock()
	c.vhost = name
	c.mu.Unlock()
}

func (c *Client) Vhost() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vhost
}

func (c *Client) ListVhosts(ctx context.Context) ([]Vhost, error) {
	var out []Vhost
	if err := c.get(ctx, "vhosts", "/api/vhosts", "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListQueues(ctx context.Context) ([]Queue, error) {
	var out []Queue
	if err := c.get(ctx, "queues", "/api/queues/"+c.escapedVhost(), "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListExchanges(ctx context.Context) ([]Exchange, error) {
	var out []Exchange
	if err := c.get(ctx, "exchanges", "/api/exchanges/"+c.escapedVhost(), "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetQueueStats(ctx context.Context, name string) (QueueStats, error) {
	var out QueueStats
	path := "/api/queues/" + c.escapedVhost() + "/" + url.PathEscape(name)
	if err := c.get(ctx, "queue", path, validate.QueueDetails, &out); err != nil {
		return QueueStats{}, err
	}
	return out, nil
}

func (c *Client) ListBindingsOfQueue(ctx context.Context, name string) ([]Binding, error) {
	var out []Binding
	path := "/api/queues/" + c.escapedVhost() + "/" + url.PathEscape(name) + "/bindings"
	if err := c.get(ctx, "bindings", path, validate.QueueBindings, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) escapedVhost() string {
	return url.PathEscape(c.Vhost())
}

func (c *Client) get(ctx context.Context, endpoint, path string, schema validate.Schema, out any) error {
	u := c.base + path
	start := time.Now()
	status := 0
	defer func() {
		if c.observe != nil {
			c.observe(endpoint, status, time.Since(start))
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &QueryError{Op: endpoint, URL: u, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.SetBasicAuth(c.login, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &QueryError{Op: endpoint, URL: u, Err: err}
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &QueryError{
			Op:         endpoint,
			URL:        u,
			StatusCode: resp.StatusCode,
			Status:     statusText(resp),
		}
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &QueryError{Op: endpoint, URL: u, StatusCode: resp.StatusCode, Err: err}
	}
	if schema != "" {
		if err := validate.Payload(schema, b); err != nil {
			return &QueryError{Op: endpoint, URL: u, StatusCode: resp.StatusCode, Err: fmt.Errorf("malformed %s payload: %w", endpoint, err)}
		}
	}
	if err := json.Unmarshal(b, out); err != nil {
		return &QueryError{Op: endpoint, URL: u, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode %s: %w", endpoint, err)}
	}
	return nil
}

// statusText returns the reason phrase the server sent, e.g. "Unauthorized".
func statusText(resp *http.Response) string {
	if _, reason, ok := strings.Cut(resp.Status, " "); ok && reason != "" {
		return reason
	}
	if t := http.StatusText(resp.StatusCode); t != "" {
		return t
	}
	return resp.Status
}
