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
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

// FetchResponse is a completed HTTP exchange after redirects were followed
type FetchResponse struct {
	// URL is the requested URL
	URL string
	// FinalURL is the URL that produced the body; equal to URL without redirects
	FinalURL string
	// RedirectChain lists the intermediate URLs, in order
	RedirectChain []string
	StatusCode    int
	Headers       http.Header
	Body          []byte
	FetchedAt     time.Time
}

// ContentType returns the response Content-Type header
func (r *FetchResponse) ContentType() string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get("Content-Type")
}

// Fetcher retrieves one URL. Implementations return *NetworkError for
// transport failures and a response, whatever its status, otherwise.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchResponse, error)
}

// HTTPFetcherConfig configures NewHTTPFetcher
type HTTPFetcherConfig struct {
	UserAgent    string
	MaxBodySize  int
	MaxRedirects int
	// RequestsPerSecond caps the total request rate across all hosts; zero disables the cap
	RequestsPerSecond float64
	// DetectCharset sniffs the body encoding when neither the headers nor the
	// document declare one
	DetectCharset bool
	// RedirectFilter, when set, must accept every redirect target or the fetch
	// fails with ErrOutOfScope
	RedirectFilter func(target string) bool
	// Transport overrides the HTTP transport, e.g. with a MockTransport in tests
	Transport http.RoundTripper
}

// HTTPFetcher is the net/http based Fetcher. Redirects are followed manually
// so every hop can be checked against RedirectFilter.
type HTTPFetcher struct {
	Client         *http.Client
	UserAgent      string
	MaxBodySize    int
	MaxRedirects   int
	DetectCharset  bool
	RedirectFilter func(target string) bool
	limiter        *rate.Limiter
}

// NewHTTPFetcher creates a fetcher from cfg
func NewHTTPFetcher(cfg HTTPFetcherConfig) *HTTPFetcher {
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	f := &HTTPFetcher{
		Client: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		UserAgent:      cfg.UserAgent,
		MaxBodySize:    cfg.MaxBodySize,
		MaxRedirects:   cfg.MaxRedirects,
		DetectCharset:  cfg.DetectCharset,
		RedirectFilter: cfg.RedirectFilter,
	}
	if f.MaxRedirects <= 0 {
		f.MaxRedirects = 10
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return f
}

// Fetch implements Fetcher. The deadline of ctx bounds the whole exchange.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*FetchResponse, error) {
	current := rawURL
	var chain []string

	for hop := 0; hop <= f.MaxRedirects; hop++ {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, &NetworkError{URL: current, Err: err}
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedURL, err)
		}
		if f.UserAgent != "" {
			req.Header.Set("User-Agent", f.UserAgent)
		}
		req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

		res, err := f.Client.Do(req)
		if err != nil {
			return nil, &NetworkError{URL: current, Err: err}
		}

		location := res.Header.Get("Location")
		if res.StatusCode >= 300 && res.StatusCode < 400 && location != "" {
			res.Body.Close()

			target, err := req.URL.Parse(location)
			if err != nil {
				return nil, fmt.Errorf("%w: redirect location %q: %v", ErrMalformedURL, location, err)
			}
			next := target.String()
			if f.RedirectFilter != nil && !f.RedirectFilter(next) {
				return nil, fmt.Errorf("%w: redirect from %s to %s", ErrOutOfScope, current, next)
			}
			chain = append(chain, current)
			current = next
			continue
		}

		body, err := f.readBody(res)
		res.Body.Close()
		if err != nil {
			return nil, &NetworkError{URL: current, Err: err}
		}

		return &FetchResponse{
			URL:           rawURL,
			FinalURL:      current,
			RedirectChain: chain,
			StatusCode:    res.StatusCode,
			Headers:       res.Header,
			Body:          body,
			FetchedAt:     time.Now(),
		}, nil
	}

	return nil, fmt.Errorf("%w: %s after %d hops", ErrRedirectLoop, rawURL, len(chain))
}

func (f *HTTPFetcher) readBody(res *http.Response) ([]byte, error) {
	var bodyReader io.Reader = res.Body
	if f.MaxBodySize > 0 {
		bodyReader = io.LimitReader(bodyReader, int64(f.MaxBodySize))
	}
	contentEncoding := strings.ToLower(res.Header.Get("Content-Encoding"))
	if !res.Uncompressed && strings.Contains(contentEncoding, "gzip") {
		gz, err := gzip.NewReader(bodyReader)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		bodyReader = gz
	}
	body, err := io.ReadAll(bodyReader)
	if err != nil {
		return nil, err
	}
	return decodeBody(body, res.Header.Get("Content-Type"), f.DetectCharset), nil
}

// decodeBody converts a textual body to UTF-8. The encoding comes from a BOM,
// the Content-Type header or a <meta> declaration. A body that is not valid
// UTF-8 and has no header charset is sniffed with chardet when detect is set,
// falling back to the declared or windows-1252 encoding.
func decodeBody(body []byte, contentType string, detect bool) []byte {
	ct := strings.ToLower(contentType)
	if ct != "" && !strings.Contains(ct, "text") && !strings.Contains(ct, "html") {
		return body
	}

	_, name, certain := charset.DetermineEncoding(body, contentType)
	if !certain {
		if utf8.Valid(body) {
			return body
		}
		if detect {
			if r, err := chardet.NewTextDetector().DetectBest(body); err == nil && r.Confidence >= 50 {
				name = r.Charset
			}
		}
	}
	if name == "" || strings.EqualFold(name, "utf-8") {
		return body
	}

	enc, _ := charset.Lookup(name)
	if enc == nil {
		return body
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return decoded
}
