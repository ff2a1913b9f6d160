// Package apiclient is a thin HTTP/JSON client for the inventory/billing service under test.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/time/rate"
)

const (
	DefaultProductsURL = "http://localhost:8080"
	DefaultBillingURL  = "http://localhost:8081"
	DefaultTimeout     = 5 * time.Second

	maxResponseSize = 1 << 20
)

var (
	// ErrTransport wraps every failure to get any HTTP response at all.
	ErrTransport = errors.New("transport failure")
	// ErrBadResponse is returned when a 2xx response body cannot be decoded.
	ErrBadResponse = errors.New("bad response body")
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

// IsCallFailure reports whether err means the API call itself failed, as opposed to
// the call succeeding with an unexpected body.
func IsCallFailure(err error) bool {
	var statusErr *StatusError
	return errors.Is(err, ErrTransport) || errors.As(err, &statusErr)
}

// ID is an entity identifier. The service may encode it as a JSON number or a numeric string.
type ID int64

func (id *ID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return errors.New("id is null")
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int64(f)) {
			return fmt.Errorf("invalid id %s", string(data))
		}
		n = int64(f)
	}
	*id = ID(n)
	return nil
}

// Entity is the part of any response body the harness relies on.
type Entity struct {
	ID *ID `json:"id"`
}

// Has reports whether id is among the entities.
func Has(entities []Entity, id int64) bool {
	for _, e := range entities {
		if e.ID != nil && int64(*e.ID) == id {
			return true
		}
	}
	return false
}

type ProductPayload struct {
	Name     string `json:"name"`
	Price    int    `json:"price"`
	Quantity int    `json:"quantity"`
}

type CustomerPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type BillingPayload struct {
	CustomerID int64 `json:"cust_id"`
	ProductID  int64 `json:"prod_id"`
	Quantity   int   `json:"quantity"`
}

// API is the surface of the service under test that the test cases drive.
type API interface {
	CreateProduct(ctx context.Context, p ProductPayload) (Entity, error)
	GetProduct(ctx context.Context, id int64) (Entity, error)
	UpdateProduct(ctx context.Context, id int64, p ProductPayload) error
	DeleteProduct(ctx context.Context, id int64) error
	CreateCustomer(ctx context.Context, c CustomerPayload) (Entity, error)
	ListCustomers(ctx context.Context) ([]Entity, error)
	CreateBilling(ctx context.Context, b BillingPayload) (Entity, error)
	ListBillings(ctx context.Context, customerID int64) ([]Entity, error)
}

type Config struct {
	ProductsURL       string
	BillingURL        string
	Timeout           time.Duration
	RequestsPerSecond float64
	Log               log.Logger
	// HTTPClient overrides the default client; its Timeout is left untouched.
	HTTPClient *http.Client
}

var _ API = (*Client)(nil)

type Client struct {
	productsURL string
	billingURL  string
	client      *http.Client
	limiter     *rate.Limiter
	log         log.Logger
}

func New(cfg Config) (*Client, error) {
	productsURL, err := baseURL(cfg.ProductsURL, DefaultProductsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid products url: %w", err)
	}
	billingURL, err := baseURL(cfg.BillingURL, DefaultBillingURL)
	if err != nil {
		return nil, fmt.Errorf("invalid billing url: %w", err)
	}
	if cfg.RequestsPerSecond < 0 {
		return nil, fmt.Errorf("requests per second must not be negative, got %v", cfg.RequestsPerSecond)
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	lgr := cfg.Log
	if lgr == nil {
		lgr = log.Root()
	}

	return &Client{
		productsURL: productsURL,
		billingURL:  billingURL,
		client:      client,
		limiter:     rate.NewLimiter(limit, 1),
		log:         lgr,
	}, nil
}

func baseURL(raw, def string) (string, error) {
	if raw == "" {
		raw = def
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("missing host")
	}
	return strings.TrimRight(raw, "/"), nil
}

func (c *Client) CreateProduct(ctx context.Context, p ProductPayload) (Entity, error) {
	var out Entity
	err := c.do(ctx, http.MethodPost, c.productsURL+"/api/products", p, &out)
	return out, err
}

func (c *Client) GetProduct(ctx context.Context, id int64) (Entity, error) {
	var out Entity
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/api/products/%d", c.productsURL, id), nil, &out)
	return out, err
}

func (c *Client) UpdateProduct(ctx context.Context, id int64, p ProductPayload) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("%s/api/products/%d", c.productsURL, id), p, nil)
}

func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("%s/api/products/%d", c.productsURL, id), nil, nil)
}

func (c *Client) CreateCustomer(ctx context.Context, cu CustomerPayload) (Entity, error) {
	var out Entity
	err := c.do(ctx, http.MethodPost, c.productsURL+"/api/customers", cu, &out)
	return out, err
}

func (c *Client) ListCustomers(ctx context.Context) ([]Entity, error) {
	var out []Entity
	err := c.do(ctx, http.MethodGet, c.productsURL+"/api/customers", nil, &out)
	return out, err
}

func (c *Client) CreateBilling(ctx context.Context, b BillingPayload) (Entity, error) {
	var out Entity
	err := c.do(ctx, http.MethodPost, c.billingURL+"/api/billing", b, &out)
	return out, err
}

func (c *Client) ListBillings(ctx context.Context, customerID int64) ([]Entity, error) {
	var out []Entity
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/api/billing/%d", c.billingURL, customerID), nil, &out)
	return out, err
}

// do sends one request. A nil out discards the body.
func (c *Client) do(ctx context.Context, method, target string, in any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %w", ErrTransport, err)
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("%w: error creating request: %w", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	res, err := c.client.Do(req)
	if err != nil {
		c.log.Debug("API request failed", "method", method, "url", target, "err", err)
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, method, target, err)
	}
	defer res.Body.Close()

	resB, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: error reading response body: %w", ErrTransport, err)
	}
	c.log.Debug("API request", "method", method, "url", target, "status", res.StatusCode, "duration", time.Since(start))

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &StatusError{Method: method, URL: target, StatusCode: res.StatusCode, Body: string(resB)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resB, out); err != nil {
		return fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	return nil
}
