// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scopecrawl

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockFetcher(mock *MockTransport) *HTTPFetcher {
	return NewHTTPFetcher(HTTPFetcherConfig{UserAgent: "scopecrawl-test", Transport: mock})
}

func TestHTTPFetcherFollowsRedirects(t *testing.T) {
	mock := NewMockTransport()
	mock.RegisterRedirect("https://www.ics.uci.edu/old", "/mid")
	mock.RegisterRedirect("https://www.ics.uci.edu/mid", "https://www.ics.uci.edu/new")
	mock.RegisterHTML("https://www.ics.uci.edu/new", "<html><body>new home</body></html>")

	res, err := newMockFetcher(mock).Fetch(context.Background(), "https://www.ics.uci.edu/old")
	require.NoError(t, err)

	assert.Equal(t, "https://www.ics.uci.edu/old", res.URL)
	assert.Equal(t, "https://www.ics.uci.edu/new", res.FinalURL)
	assert.Equal(t, []string{"https://www.ics.uci.edu/old", "https://www.ics.uci.edu/mid"}, res.RedirectChain)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(res.Body), "new home")
	assert.Contains(t, res.ContentType(), "text/html")
}

func TestHTTPFetcherRedirectFilter(t *testing.T) {
	mock := NewMockTransport()
	mock.RegisterRedirect("https://www.ics.uci.edu/away", "https://www.google.com/")
	mock.RegisterHTML("https://www.google.com/", "<html></html>")

	scope, err := NewScope(DefaultScopeRules, nil)
	require.NoError(t, err)

	f := NewHTTPFetcher(HTTPFetcherConfig{Transport: mock, RedirectFilter: scope.InScope})
	_, err = f.Fetch(context.Background(), "https://www.ics.uci.edu/away")
	assert.ErrorIs(t, err, ErrOutOfScope)
	assert.Equal(t, 0, mock.Requests("https://www.google.com/"), "out of scope target must not be requested")
}

func TestHTTPFetcherRedirectLoop(t *testing.T) {
	mock := NewMockTransport()
	mock.RegisterRedirect("https://www.ics.uci.edu/a", "/b")
	mock.RegisterRedirect("https://www.ics.uci.edu/b", "/a")

	f := NewHTTPFetcher(HTTPFetcherConfig{Transport: mock, MaxRedirects: 3})
	_, err := f.Fetch(context.Background(), "https://www.ics.uci.edu/a")

	assert.ErrorIs(t, err, ErrRedirectLoop)
	assert.False(t, isTransient(err))
	assert.Equal(t, 4, mock.Requests("https://www.ics.uci.edu/a")+mock.Requests("https://www.ics.uci.edu/b"))
}

func TestHTTPFetcherNetworkError(t *testing.T) {
	mock := NewMockTransport()
	mock.RegisterError("https://www.ics.uci.edu/down", errors.New("connection reset by peer"))

	_, err := newMockFetcher(mock).Fetch(context.Background(), "https://www.ics.uci.edu/down")

	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, "https://www.ics.uci.edu/down", netErr.URL)
	assert.True(t, isTransient(err))
}

func TestHTTPFetcherReturnsErrorStatuses(t *testing.T) {
	mock := NewMockTransport()
	mock.RegisterResponse("https://www.ics.uci.edu/gone", &MockResponse{StatusCode: http.StatusGone, Body: "gone"})

	res, err := newMockFetcher(mock).Fetch(context.Background(), "https://www.ics.uci.edu/gone")
	require.NoError(t, err)
	assert.Equal(t, http.StatusGone, res.StatusCode)
}

func TestHTTPFetcherGzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte("<html><body>compressed page</body></html>"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	headers := make(http.Header)
	headers.Set("Content-Type", "text/html; charset=utf-8")
	headers.Set("Content-Encoding", "gzip")

	mock := NewMockTransport()
	mock.RegisterResponse("https://www.ics.uci.edu/gz", &MockResponse{Body: buf.String(), Headers: headers})

	res, err := newMockFetcher(mock).Fetch(context.Background(), "https://www.ics.uci.edu/gz")
	require.NoError(t, err)
	assert.Equal(t, "<html><body>compressed page</body></html>", string(res.Body))
}

func TestHTTPFetcherDeclaredCharset(t *testing.T) {
	headers := make(http.Header)
	headers.Set("Content-Type", "text/html; charset=iso-8859-1")

	mock := NewMockTransport()
	mock.RegisterResponse("https://www.ics.uci.edu/latin1", &MockResponse{Body: "<p>caf\xe9</p>", Headers: headers})

	res, err := newMockFetcher(mock).Fetch(context.Background(), "https://www.ics.uci.edu/latin1")
	require.NoError(t, err)
	assert.Equal(t, "<p>café</p>", string(res.Body))
}

func TestDecodeBody(t *testing.T) {
	t.Run("utf-8 untouched", func(t *testing.T) {
		body := []byte("<p>café</p>")
		assert.Equal(t, body, decodeBody(body, "text/html; charset=utf-8", true))
	})
	t.Run("meta declaration", func(t *testing.T) {
		body := []byte("<html><head><meta charset=\"iso-8859-1\"></head><body>na\xefve</body></html>")
		assert.Contains(t, string(decodeBody(body, "text/html", false)), "naïve")
	})
	t.Run("windows-1252 fallback", func(t *testing.T) {
		body := []byte("<p>caf\xe9</p>")
		assert.Equal(t, "<p>café</p>", string(decodeBody(body, "text/html", false)))
	})
	t.Run("valid utf-8 without declaration", func(t *testing.T) {
		body := []byte("<p>naïve</p>")
		assert.Equal(t, body, decodeBody(body, "text/html", true))
	})
	t.Run("binary content types are skipped", func(t *testing.T) {
		body := []byte{0x89, 'P', 'N', 'G'}
		assert.Equal(t, body, decodeBody(body, "image/png", true))
	})
}

func TestHTTPFetcherAgainstServer(t *testing.T) {
	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		switch r.URL.Path {
		case "/start":
			http.Redirect(w, r, "/landing", http.StatusFound)
		case "/landing":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte("<html><body>" + strings.Repeat("x", 100) + "</body></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPFetcherConfig{UserAgent: "scopecrawl-test", MaxBodySize: 20})
	res, err := f.Fetch(context.Background(), srv.URL+"/start")
	require.NoError(t, err)

	assert.Equal(t, "scopecrawl-test", gotAgent)
	assert.Equal(t, srv.URL+"/landing", res.FinalURL)
	assert.Len(t, res.Body, 20)
}

func TestHTTPFetcherCancelledContext(t *testing.T) {
	mock := NewMockTransport()
	mock.RegisterHTML("https://www.ics.uci.edu/", "<html></html>")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewHTTPFetcher(HTTPFetcherConfig{Transport: mock, RequestsPerSecond: 1})
	_, err := f.Fetch(ctx, "https://www.ics.uci.edu/")
	var netErr *NetworkError
	assert.True(t, errors.As(err, &netErr))
}
