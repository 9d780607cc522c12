package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const schemeHttps = "https"

type Connection interface {
	Request(ctx context.Context, endpoint *url.URL) (*http.Response, error)
}

type ClientHost struct {
	client  *http.Client
	host    string
	scheme  string
	headers map[string]string
	limiter *rate.Limiter
}

type Client struct {
	Connection Connection
	ApiKey     string
}

type ClientOption func(*ClientHost)

// WithScheme overrides https, mostly so tests can point a client at httptest
func WithScheme(scheme string) ClientOption {
	return func(ch *ClientHost) { ch.scheme = scheme }
}

// WithRateLimit spaces requests out to at most requestsPerMinute, bursting one at a time
func WithRateLimit(requestsPerMinute int) ClientOption {
	return func(ch *ClientHost) {
		if requestsPerMinute <= 0 {
			return
		}
		ch.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
	}
}

func WithProxy(proxy *url.URL) ClientOption {
	return func(ch *ClientHost) {
		if proxy == nil {
			return
		}
		ch.client.Transport = &http.Transport{Proxy: http.ProxyURL(proxy)}
	}
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(ch *ClientHost) {
		if timeout > 0 {
			ch.client.Timeout = timeout
		}
	}
}

func WithHeader(key, value string) ClientOption {
	return func(ch *ClientHost) { ch.headers[key] = value }
}

func (conn *ClientHost) Request(ctx context.Context, endpoint *url.URL) (*http.Response, error) {
	if conn.limiter != nil {
		if err := conn.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("error waiting on rate limiter: %w", err)
		}
	}

	endpoint.Scheme = conn.scheme
	endpoint.Host = conn.host

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}
	for k, v := range conn.headers {
		req.Header.Set(k, v)
	}

	res, err := conn.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	return res, nil
}

func ClientFactory(host string, apiKey string, timeout time.Duration, opts ...ClientOption) *Client {
	client := &http.Client{
		Timeout: timeout,
	}

	clientHost := &ClientHost{
		client:  client,
		host:    host,
		scheme:  schemeHttps,
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(clientHost)
	}

	return &Client{
		Connection: clientHost,
		ApiKey:     apiKey,
	}
}
