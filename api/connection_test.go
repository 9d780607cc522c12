package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/guregu/null/v6"

	ex "mc.service/data/extensions"
	m "mc.service/data/models"
)

func hostOf(t *testing.T, server *httptest.Server) string {
	t.Helper()
	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("error parsing test server url: %s", err)
	}
	return u.Host
}

func Test_ClientHost_RequestSetsHostSchemeAndHeaders(t *testing.T) {
	var gotPath, gotQuery, gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAgent = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := ClientFactory(hostOf(t, server), "key", time.Second, WithScheme("http"), WithHeader("User-Agent", "mc-test"))
	endpoint := &url.URL{Path: "/query", RawQuery: "symbol=AAPL"}

	res, err := c.Connection.Request(context.Background(), endpoint)
	if err != nil {
		t.Fatalf("error making request: %s", err)
	}
	res.Body.Close()

	ex.AssertAreEqual(t, "path", "/query", gotPath)
	ex.AssertAreEqual(t, "query", "symbol=AAPL", gotQuery)
	ex.AssertAreEqual(t, "user agent", "mc-test", gotAgent)
	ex.AssertAreEqual(t, "api key", "key", c.ApiKey)
}

func Test_ClientHost_UnreachableHostIsProviderUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	host := hostOf(t, server)
	server.Close()

	c := ClientFactory(host, "", time.Second, WithScheme("http"))
	_, err := c.Connection.Request(context.Background(), &url.URL{Path: "/"})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func Test_ClientHost_RateLimitHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	c := ClientFactory(hostOf(t, server), "", time.Second, WithScheme("http"), WithRateLimit(1))

	res, err := c.Connection.Request(context.Background(), &url.URL{Path: "/"})
	if err != nil {
		t.Fatalf("first request should pass the limiter: %s", err)
	}
	res.Body.Close()

	// the next token is a minute away, so a short deadline has to fail fast
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Connection.Request(ctx, &url.URL{Path: "/"}); err == nil {
		t.Fatalf("expected rate limiter to refuse the second request")
	}
}

func Test_CheckStatus(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusOK, nil},
		{http.StatusNotFound, ErrSymbolNotFound},
		{http.StatusTooManyRequests, ErrProviderUnavailable},
		{http.StatusBadGateway, ErrProviderUnavailable},
	}

	for _, c := range cases {
		err := CheckStatus(&http.Response{StatusCode: c.status}, "AAPL")
		if c.want == nil && err != nil {
			t.Fatalf("status %d: expected no error, got %v", c.status, err)
		}
		if c.want != nil && !errors.Is(err, c.want) {
			t.Fatalf("status %d: expected %v, got %v", c.status, c.want, err)
		}
	}
}

func Test_NormalizeSymbol(t *testing.T) {
	ex.AssertAreEqual(t, "symbol", "AAPL", NormalizeSymbol("  aapl \n"))
	ex.AssertAreEqual(t, "symbol", "BRK.B", NormalizeSymbol("brk.b"))
}

func Test_SortObservations(t *testing.T) {
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	obs := []*m.PriceObservation{
		{Timestamp: base.AddDate(0, 0, 2), Close: null.FloatFrom(3)},
		{Timestamp: base, Close: null.FloatFrom(1)},
		{Timestamp: base.AddDate(0, 0, 1), Close: null.FloatFrom(2)},
	}

	SortObservations(obs)

	var sb strings.Builder
	for _, o := range obs {
		sb.WriteString(fmt.Sprintf("%.0f", o.Close.Float64))
	}
	ex.AssertAreEqual(t, "order", "123", sb.String())
}
