// File: internal/network/client.go
package network

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/lancet/api/schemas"
)

// Timeouts and pool sizes tuned for page loads: one document plus a burst of
// subresources against a small set of hosts.
const (
	defaultDialTimeout         = 15 * time.Second
	defaultKeepAlive           = 30 * time.Second
	defaultTLSHandshakeTimeout = 10 * time.Second
	defaultHeaderTimeout       = 30 * time.Second
	defaultRequestTimeout      = 60 * time.Second

	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 15
	defaultIdleConnTimeout     = 90 * time.Second

	defaultMaxBodyBytes = int64(10 << 20)
	defaultMaxRedirects = 10
)

// DefaultUserAgent mimics a mainstream desktop browser. Enough sites vary
// their markup on UA sniffing that an honest bot UA changes what renders.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const (
	defaultAccept         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	defaultAcceptLanguage = "en-US,en;q=0.9"
)

// ClientConfig configures the outbound HTTP client shared by the document
// fetch, the fetch/XHR shims, and the module loader.
type ClientConfig struct {
	UserAgent      string
	AcceptLanguage string

	// RequestTimeout bounds a single request end to end. Callers normally
	// pass a tighter per-call context on top of it.
	RequestTimeout time.Duration

	// MaxBodyBytes caps how much of a response body is read. A body over
	// the cap fails the fetch rather than returning a truncated document.
	MaxBodyBytes int64

	MaxRedirects int

	InsecureSkipVerify bool
	ProxyURL           *url.URL

	// RequestsPerSecond gates request issue across the whole client.
	// Zero disables the limiter.
	RequestsPerSecond float64
	Burst             int

	Logger *zap.Logger
}

// DefaultClientConfig returns the browser-shaped defaults.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		UserAgent:      DefaultUserAgent,
		AcceptLanguage: defaultAcceptLanguage,
		RequestTimeout: defaultRequestTimeout,
		MaxBodyBytes:   defaultMaxBodyBytes,
		MaxRedirects:   defaultMaxRedirects,
	}
}

// Client is the network collaborator. It follows redirects up to a cap,
// negotiates and unwraps content encodings, decodes textual bodies to UTF-8,
// and keeps cookies across requests within one client.
type Client struct {
	http    *http.Client
	cfg     ClientConfig
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewClient builds a Client from cfg. A nil cfg gets the defaults; zero
// fields are filled in.
func NewClient(cfg *ClientConfig) *Client {
	merged := *DefaultClientConfig()
	if cfg != nil {
		if cfg.UserAgent != "" {
			merged.UserAgent = cfg.UserAgent
		}
		if cfg.AcceptLanguage != "" {
			merged.AcceptLanguage = cfg.AcceptLanguage
		}
		if cfg.RequestTimeout > 0 {
			merged.RequestTimeout = cfg.RequestTimeout
		}
		if cfg.MaxBodyBytes > 0 {
			merged.MaxBodyBytes = cfg.MaxBodyBytes
		}
		if cfg.MaxRedirects > 0 {
			merged.MaxRedirects = cfg.MaxRedirects
		}
		merged.InsecureSkipVerify = cfg.InsecureSkipVerify
		merged.ProxyURL = cfg.ProxyURL
		merged.RequestsPerSecond = cfg.RequestsPerSecond
		merged.Burst = cfg.Burst
		merged.Logger = cfg.Logger
	}
	if merged.Logger == nil {
		merged.Logger = zap.NewNop()
	}

	jar, _ := cookiejar.New(nil)
	httpClient := &http.Client{
		Transport: newDecompressingTransport(newTransport(&merged)),
		Jar:       jar,
		Timeout:   merged.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= merged.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", merged.MaxRedirects)
			}
			return nil
		},
	}

	var limiter *rate.Limiter
	if merged.RequestsPerSecond > 0 {
		burst := merged.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(merged.RequestsPerSecond), burst)
	}

	return &Client{
		http:    httpClient,
		cfg:     merged,
		limiter: limiter,
		log:     merged.Logger.Named("network"),
	}
}

// newTransport builds the underlying transport. Compression is disabled here
// because the decompressing wrapper negotiates encodings itself.
func newTransport(cfg *ClientConfig) *http.Transport {
	dialer := &net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}
	t := &http.Transport{
		DialContext: dialer.DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			NextProtos:         []string{"h2", "http/1.1"},
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
		TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: defaultHeaderTimeout,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		MaxConnsPerHost:       defaultMaxConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		ForceAttemptHTTP2:     true,
		DisableCompression:    true,
	}
	if cfg.ProxyURL != nil {
		t.Proxy = http.ProxyURL(cfg.ProxyURL)
	}
	return t
}

// Do issues req and returns a fully-read response. The body arrives
// decompressed and, for textual content types, decoded to UTF-8. Do is safe
// for concurrent use.
func (c *Client) Do(ctx context.Context, req schemas.FetchRequest) (*schemas.FetchResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", req.URL, err)
	}
	httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	httpReq.Header.Set("Accept", defaultAccept)
	httpReq.Header.Set("Accept-Language", c.cfg.AcceptLanguage)
	for _, h := range req.Headers {
		httpReq.Header.Set(h.Name, h.Value)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := c.readCapped(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body from %s: %w", req.URL, err)
	}

	finalURL := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	contentType := resp.Header.Get("Content-Type")
	decoded := raw
	if isTextual(contentType) {
		if d, derr := DecodeToUTF8(raw, contentType); derr != nil {
			c.log.Warn("Charset decode failed; returning raw bytes.",
				zap.String("url", finalURL), zap.Error(derr))
		} else {
			decoded = d
		}
	}

	out := &schemas.FetchResponse{
		URL:        finalURL,
		Status:     resp.StatusCode,
		StatusText: statusText(resp),
		Body:       decoded,
		Redirected: finalURL != req.URL,
	}
	names := make([]string, 0, len(resp.Header))
	for name := range resp.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range resp.Header[name] {
			out.Headers = append(out.Headers, schemas.NVPair{Name: name, Value: v})
		}
	}
	return out, nil
}

// CloseIdleConnections releases pooled connections. Call it when the client
// is retired.
func (c *Client) CloseIdleConnections() {
	c.http.CloseIdleConnections()
}

func (c *Client) readCapped(r io.Reader) ([]byte, error) {
	max := c.cfg.MaxBodyBytes
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("response body exceeds %d bytes", max)
	}
	return data, nil
}

func statusText(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	// Non-standard code: fall back to whatever the server sent.
	return strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprintf("%d", resp.StatusCode)))
}
