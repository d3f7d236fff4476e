// Package client builds the baseline request context shared by every
// scenario and dispatches cloned requests with timeout, retry and rate
// limiting applied.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"restqa/internal/config"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultRetryWait = 200 * time.Millisecond
)

// RetryPolicy retries transport errors and 502/503/504 responses.
// The zero value performs a single attempt.
type RetryPolicy struct {
	MaxRetries int
	Wait       time.Duration
}

func (p RetryPolicy) attempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return 1 + p.MaxRetries
}

// backoff doubles the wait for every retry already made.
func (p RetryPolicy) backoff(retry int) time.Duration {
	return p.Wait * time.Duration(1<<(retry-1))
}

type credentials struct {
	user, pass string
}

// Baseline is the immutable request context. Every call starts from a
// clone made by NewRequest.
type Baseline struct {
	baseURI  string
	basePath string
	header   http.Header
	basic    *credentials
	account  *credentials
	timeout  time.Duration
	retry    RetryPolicy
	limiter  *rate.Limiter
	hooks    []Hook
	http     *http.Client
}

type Option func(*Baseline)

func WithHTTPClient(c *http.Client) Option { return func(b *Baseline) { b.http = c } }
func WithHook(h Hook) Option               { return func(b *Baseline) { b.hooks = append(b.hooks, h) } }
func WithRetry(p RetryPolicy) Option       { return func(b *Baseline) { b.retry = p } }
func WithTimeout(d time.Duration) Option   { return func(b *Baseline) { b.timeout = d } }
func WithLimiter(l *rate.Limiter) Option   { return func(b *Baseline) { b.limiter = l } }

// New builds the baseline from configuration. Malformed typed settings are
// returned as *config.ParseError.
func New(cfg *config.Config, opts ...Option) (*Baseline, error) {
	base := strings.TrimSpace(cfg.BaseURL())
	if base == "" {
		return nil, fmt.Errorf("client: %s is not configured", config.KeyBaseURL)
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("client: invalid %s %q", config.KeyBaseURL, base)
	}

	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	enabled, err := cfg.RetryEnabled()
	if err != nil {
		return nil, err
	}
	retries, err := cfg.MaxRetries()
	if err != nil {
		return nil, err
	}
	wait, err := cfg.RetryWait()
	if err != nil {
		return nil, err
	}
	if wait <= 0 {
		wait = DefaultRetryWait
	}
	rps, err := cfg.RateLimit()
	if err != nil {
		return nil, err
	}

	b := &Baseline{
		baseURI:  base,
		basePath: cfg.BasePath(),
		header:   http.Header{},
		timeout:  timeout,
		http: &http.Client{Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        128,
			MaxIdleConnsPerHost: 64,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		}},
	}
	b.header.Set("Content-Type", "application/json")
	b.header.Set("Accept", "application/json")
	if key := cfg.AuthKey(); key != "" {
		b.header.Set(key, cfg.AuthToken())
		b.basic = &credentials{user: key, pass: cfg.AuthToken()}
	}
	if user := cfg.Username(); user != "" {
		b.account = &credentials{user: user, pass: cfg.Password()}
	}
	if enabled {
		b.retry = RetryPolicy{MaxRetries: retries, Wait: wait}
	}
	if rps > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}

	for _, o := range opts {
		o(b)
	}
	return b, nil
}

func (b *Baseline) BaseURI() string        { return b.baseURI }
func (b *Baseline) BasePath() string       { return b.basePath }
func (b *Baseline) Timeout() time.Duration { return b.timeout }
func (b *Baseline) Retry() RetryPolicy     { return b.retry }

// WithBaseURI returns a copy targeting another host. The receiver is left
// untouched so other scenarios keep the configured base URI.
func (b *Baseline) WithBaseURI(raw string) (*Baseline, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("client: invalid base URI %q", raw)
	}
	cp := *b
	cp.baseURI = u.String()
	cp.header = b.header.Clone()
	return &cp, nil
}

// Authenticated returns a copy that authenticates with auth.username and
// auth.password instead of the auth key and token.
func (b *Baseline) Authenticated() *Baseline {
	cp := *b
	cp.header = b.header.Clone()
	if b.account != nil {
		cp.basic = b.account
	}
	return &cp
}

// URL joins base URI, base path and path. Absolute URLs pass through.
func (b *Baseline) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	parts := []string{strings.TrimRight(b.baseURI, "/")}
	if bp := strings.Trim(b.basePath, "/"); bp != "" {
		parts = append(parts, bp)
	}
	if p := strings.TrimLeft(path, "/"); p != "" {
		parts = append(parts, p)
	}
	return strings.Join(parts, "/")
}

// Target is the full URL req will be sent to, query included.
func (b *Baseline) Target(req *Request) string {
	target := b.URL(req.Path)
	if len(req.Query) == 0 {
		return target
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + req.Query.Encode()
}

// Request is one call cloned from the baseline.
type Request struct {
	Method  string
	Path    string
	Header  http.Header
	Query   url.Values
	body    []byte
	bodyErr error
	basic   *credentials
	timeout time.Duration
}

func (b *Baseline) NewRequest(method, path string) *Request {
	return &Request{
		Method: strings.ToUpper(method),
		Path:   path,
		Header: b.header.Clone(),
		Query:  url.Values{},
		basic:  b.basic,
	}
}

// WithBody sets the payload. Strings and byte slices are sent verbatim;
// anything else is JSON encoded.
func (r *Request) WithBody(v any) *Request {
	switch x := v.(type) {
	case nil:
		r.body = nil
	case string:
		r.body = []byte(x)
	case []byte:
		r.body = x
	default:
		r.body, r.bodyErr = json.Marshal(x)
	}
	return r
}

// WithRawBody sends b without encoding, for malformed-payload checks.
func (r *Request) WithRawBody(b []byte) *Request {
	r.body, r.bodyErr = b, nil
	return r
}

func (r *Request) WithHeader(k, v string) *Request { r.Header.Set(k, v); return r }
func (r *Request) WithQuery(k, v string) *Request  { r.Query.Add(k, v); return r }

func (r *Request) WithTimeout(d time.Duration) *Request { r.timeout = d; return r }

func (r *Request) WithBasicAuth(user, pass string) *Request {
	r.basic = &credentials{user: user, pass: pass}
	return r
}

func (r *Request) WithoutAuth() *Request { r.basic = nil; return r }

func (r *Request) Body() []byte { return r.body }

// Response is what a dispatch recorded. Elapsed covers the whole call,
// retries and backoff included.
type Response struct {
	Method        string
	URL           string
	StatusCode    int
	Header        http.Header
	Body          []byte
	Elapsed       time.Duration
	Attempts      int
	RequestHeader http.Header
	RequestBody   []byte
}

// Do dispatches req. A non-nil error means no response was received.
func (b *Baseline) Do(ctx context.Context, req *Request) (*Response, error) {
	if req.bodyErr != nil {
		return nil, fmt.Errorf("encode body: %w", req.bodyErr)
	}
	target := b.Target(req)
	timeout := req.timeout
	if timeout <= 0 {
		timeout = b.timeout
	}

	start := time.Now()
	attempts := b.retry.attempts()
	var (
		resp *Response
		err  error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if werr := sleep(ctx, b.retry.backoff(attempt-1)); werr != nil {
				break
			}
		}
		if b.limiter != nil {
			if werr := b.limiter.Wait(ctx); werr != nil {
				return nil, fmt.Errorf("rate limit: %w", werr)
			}
		}
		resp, err = b.send(ctx, req, target, timeout, attempt)
		if !retryable(ctx, resp, err) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	resp.Elapsed = time.Since(start)
	return resp, nil
}

func (b *Baseline) send(ctx context.Context, req *Request, target string, timeout time.Duration, attempt int) (*Response, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(cctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	httpReq.Header = req.Header.Clone()
	if req.basic != nil {
		httpReq.SetBasicAuth(req.basic.user, req.basic.pass)
	}

	for _, h := range b.hooks {
		h.BeforeRequest(httpReq, req.body, attempt)
	}

	out := &Response{
		Method:        req.Method,
		URL:           target,
		Attempts:      attempt,
		RequestHeader: httpReq.Header.Clone(),
		RequestBody:   req.body,
	}
	start := time.Now()
	hresp, err := b.http.Do(httpReq)
	if err != nil {
		out.Elapsed = time.Since(start)
		err = fmt.Errorf("%s %s: %w", req.Method, target, err)
		b.after(out, err)
		return nil, err
	}
	defer hresp.Body.Close()

	data, err := io.ReadAll(hresp.Body)
	out.Elapsed = time.Since(start)
	out.StatusCode = hresp.StatusCode
	out.Header = hresp.Header
	out.Body = data
	if err != nil {
		err = fmt.Errorf("%s %s: read body: %w", req.Method, target, err)
		b.after(out, err)
		return nil, err
	}
	b.after(out, nil)
	return out, nil
}

func (b *Baseline) after(resp *Response, err error) {
	for _, h := range b.hooks {
		h.AfterResponse(resp, err)
	}
}

func retryable(ctx context.Context, resp *Response, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if err != nil {
		return !errors.Is(err, errInvalidRequest)
	}
	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

var errInvalidRequest = errors.New("invalid request")

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
