package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"operaciones/internal/api"
	"operaciones/internal/core"
	"operaciones/internal/log"
)

// DefaultBaseURL is used when no override is configured.
const DefaultBaseURL = "http://localhost:5174/api"

const (
	operationsPath  = "Operaciones"
	creditTypesPath = "TipoCredito"

	maxBodyBytes  = 4 << 20
	maxErrorBytes = 512

	// sharedCallTimeout bounds a collapsed request, which no longer follows
	// any single caller's context.
	sharedCallTimeout = 30 * time.Second
)

// Doer is the transport the client sends requests through. *http.Client
// satisfies it; tests substitute their own.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	base *url.URL
	http Doer
	sf   singleflight.Group
}

// Ensure interface conformance
var _ api.Repository = (*Client)(nil)

type Option func(*Client)

// WithHTTPClient replaces the transport.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.http = d
		}
	}
}

// New creates a client for the REST API rooted at baseURL
// (e.g. http://localhost:5174/api).
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	c := &Client{base: u, http: NewHTTPClient(30 * time.Second)}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewHTTPClient creates an HTTP client with connection pooling and the
// given overall request timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

func (c *Client) List(ctx context.Context, search string) ([]core.Operation, error) {
	u := c.endpoint(operationsPath)
	if q := strings.TrimSpace(search); q != "" {
		u.RawQuery = url.Values{"search": {q}}.Encode()
	}
	var out []core.Operation
	if err := c.do(ctx, "list operations", http.MethodGet, u, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []core.Operation{}
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, id int64) (core.Operation, error) {
	var out core.Operation
	err := c.do(ctx, "get operation", http.MethodGet, c.endpoint(operationsPath, strconv.FormatInt(id, 10)), nil, &out)
	return out, err
}

func (c *Client) Create(ctx context.Context, op core.Operation) (core.Operation, error) {
	op.ID = 0
	var out core.Operation
	err := c.do(ctx, "create operation", http.MethodPost, c.endpoint(operationsPath), op, &out)
	return out, err
}

func (c *Client) Update(ctx context.Context, id int64, op core.Operation) (core.Operation, error) {
	op.ID = id
	var out core.Operation
	err := c.do(ctx, "update operation", http.MethodPut, c.endpoint(operationsPath, strconv.FormatInt(id, 10)), op, &out)
	if err != nil {
		return core.Operation{}, err
	}
	// Some backends answer 204 to PUT; fall back to what was sent.
	if out.ID == 0 {
		out = op
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, "delete operation", http.MethodDelete, c.endpoint(operationsPath, strconv.FormatInt(id, 10)), nil, nil)
}

// ListCreditTypes collapses concurrent calls into a single request. The
// request outlives a caller that gives up; each caller still returns as
// soon as its own ctx is done.
func (c *Client) ListCreditTypes(ctx context.Context) ([]core.CreditType, error) {
	const op = "list credit types"
	ch := c.sf.DoChan(creditTypesPath, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedCallTimeout)
		defer cancel()
		var out []core.CreditType
		if err := c.do(shared, op, http.MethodGet, c.endpoint(creditTypesPath), nil, &out); err != nil {
			return nil, err
		}
		return out, nil
	})

	select {
	case <-ctx.Done():
		return nil, &api.RemoteError{Op: op, Err: errors.Join(api.ErrRemote, ctx.Err())}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		types := res.Val.([]core.CreditType)
		return append([]core.CreditType(nil), types...), nil
	}
}

func (c *Client) endpoint(elem ...string) *url.URL {
	return c.base.JoinPath(elem...)
}

func (c *Client) do(ctx context.Context, op, method string, u *url.URL, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger := log.FromContext(ctx)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.WarnContext(ctx, "Backend request failed",
			log.FieldOperation, op,
			log.FieldMethod, method,
			log.FieldPath, u.Path,
			log.FieldDuration, time.Since(start).Milliseconds(),
			log.FieldError, err)
		return &api.RemoteError{Op: op, Err: errors.Join(api.ErrRemote, err)}
	}
	defer resp.Body.Close()

	logger.DebugContext(ctx, "Backend request completed",
		log.FieldOperation, op,
		log.FieldMethod, method,
		log.FieldPath, u.Path,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		return &api.RemoteError{
			Op:     op,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(snippet)),
			Err:    statusError(resp.StatusCode),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &api.RemoteError{Op: op, Status: resp.StatusCode, Err: errors.Join(api.ErrRemote, err)}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &api.RemoteError{Op: op, Status: resp.StatusCode, Err: errors.Join(api.ErrRemote, fmt.Errorf("decode response: %w", err))}
	}
	return nil
}

func statusError(status int) error {
	switch status {
	case http.StatusNotFound:
		return api.ErrNotFound
	case http.StatusConflict:
		return api.ErrConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return api.ErrInvalid
	default:
		return api.ErrRemote
	}
}
