package probe

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// DefaultConnectTimeout bounds the TCP (or SOCKS) connect phase.
const DefaultConnectTimeout = 5 * time.Second

// DefaultMaxBodySize limits the number of body bytes read per response.
const DefaultMaxBodySize int64 = 10 * 1024 * 1024

// DefaultUserAgent is the mobile browser user agent sent with every probe.
// Some sites only advertise touch icons to mobile clients.
const DefaultUserAgent = "Mozilla/5.0 (Mobile; rv:25.0) Gecko/25.0 Firefox/25.0"

// DefaultHeaders returns the headers sent with every request unless a call
// opts out with WithoutDefaultHeaders. The returned map is a fresh copy.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
		"User-Agent":      DefaultUserAgent,
		"Accept-Encoding": "gzip, deflate",
	}
}

// Dialer opens network connections. *net.Dialer and *tor.Client satisfy it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Result is the outcome of one GET.
type Result struct {
	// URL is the requested URL.
	URL string
	// StatusCode is the HTTP status code.
	StatusCode int
	// Header holds the response headers. Lookups are case-insensitive.
	Header http.Header
	// Body is the decoded response body.
	Body []byte
}

// ContentType returns the raw Content-Type header value.
func (r *Result) ContentType() string {
	return r.Header.Get("Content-Type")
}

// OK reports whether the status code is exactly 200.
func (r *Result) OK() bool {
	return r.StatusCode == http.StatusOK
}

// Success reports whether the status code is in the 2xx range.
func (r *Result) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client issues synchronous GET requests.
type Client struct {
	httpClient     *http.Client
	dialer         Dialer
	connectTimeout time.Duration
	defaults       map[string]string
	headers        map[string]string
	cookie         string
	maxBodySize    int64
	logger         *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithConnectTimeout sets the connect timeout. Zero disables it.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.connectTimeout = d
	}
}

// WithDialer routes every connection through d, for example a Tor
// SOCKS5 proxy.
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithHeaders adds headers on top of the defaults. Later values win.
// They are sent with every call, including calls without default headers.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

// WithCookie sets a raw cookie string (e.g. "session=abc") sent with
// every request.
func WithCookie(cookie string) Option {
	return func(c *Client) {
		c.cookie = cookie
	}
}

// WithMaxBodySize limits how many body bytes are read per response.
func WithMaxBodySize(size int64) Option {
	return func(c *Client) {
		if size > 0 {
			c.maxBodySize = size
		}
	}
}

// WithLogger sets the logger for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Client.
//
// The client has no overall timeout of its own. A timeout is applied per
// call with WithTimeout; calls without one are bounded only by the
// caller's context and the connect timeout.
func NewClient(opts ...Option) *Client {
	c := &Client{
		connectTimeout: DefaultConnectTimeout,
		defaults:       DefaultHeaders(),
		headers:        make(map[string]string),
		maxBodySize:    DefaultMaxBodySize,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	transport := &http.Transport{
		DialContext:         c.dialContext,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
	}
	// Environment proxies must not bypass a custom dialer such as Tor.
	if c.dialer == nil {
		transport.Proxy = http.ProxyFromEnvironment
	}

	c.httpClient = &http.Client{
		Transport: &headerInjectingTransport{
			base:     transport,
			cookie:   c.cookie,
			defaults: c.defaults,
			headers:  c.headers,
		},
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	return c
}

// dialContext applies the connect timeout to whichever dialer is in use.
func (c *Client) dialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if c.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.connectTimeout)
		defer cancel()
	}
	if c.dialer != nil {
		return c.dialer.DialContext(ctx, network, address)
	}
	var d net.Dialer
	return d.DialContext(ctx, network, address)
}

// getOptions holds per-call settings.
type getOptions struct {
	timeout         time.Duration
	withoutDefaults bool
}

// GetOption configures a single Get call.
type GetOption func(*getOptions)

// WithTimeout bounds the whole request, body included. Zero means no
// per-call timeout.
func WithTimeout(d time.Duration) GetOption {
	return func(o *getOptions) {
		o.timeout = d
	}
}

// WithoutDefaultHeaders sends only the headers set with WithHeaders, so the
// request carries the transport's own User-Agent and Accept-Encoding.
func WithoutDefaultHeaders() GetOption {
	return func(o *getOptions) {
		o.withoutDefaults = true
	}
}

// skipDefaultsKey marks a request context whose requests, redirects
// included, must not carry the default headers.
type skipDefaultsKey struct{}

// Get fetches rawURL and reads the whole body.
//
// Any status code is returned as a Result; callers decide which codes are
// acceptable. Failures before a complete response is read are wrapped in
// ErrTransport. The response body is always closed before Get returns.
func (c *Client) Get(ctx context.Context, rawURL string, opts ...GetOption) (*Result, error) {
	o := &getOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	if o.withoutDefaults {
		ctx = context.WithValue(ctx, skipDefaultsKey{}, true)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidURL, rawURL, err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrTransport, rawURL, err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp, c.maxBodySize)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrTransport, rawURL, err)
	}

	c.logger.Debug("probe completed",
		"url", rawURL,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(start),
	)

	return &Result{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// readBody reads at most limit bytes and undoes gzip or deflate content
// encoding. The transport only decompresses on its own when Accept-Encoding
// was left to it.
func readBody(resp *http.Response, limit int64) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return raw, nil
	}

	var r io.ReadCloser
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip", "x-gzip":
		r, err = gzip.NewReader(bytes.NewReader(raw))
	case "deflate":
		// Servers disagree on whether deflate means zlib-wrapped or raw.
		r, err = zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			r, err = flate.NewReader(bytes.NewReader(raw)), nil
		}
	default:
		return raw, nil
	}
	if err != nil {
		return nil, err
	}
	defer r.Close()

	decoded, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return nil, err
	}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	return decoded, nil
}

// headerInjectingTransport wraps an http.RoundTripper to inject
// headers and a cookie into every request, redirects included.
type headerInjectingTransport struct {
	base     http.RoundTripper
	cookie   string
	defaults map[string]string
	headers  map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if skip, _ := req.Context().Value(skipDefaultsKey{}).(bool); !skip {
		for key, value := range t.defaults {
			clone.Header.Set(key, value)
		}
	}
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}

	return t.base.RoundTrip(clone)
}
