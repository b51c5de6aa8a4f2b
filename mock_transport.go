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
	"io"
	"net/http"
	"regexp"
	"sync"
	"time"
)

// MockResponse is one canned HTTP exchange
type MockResponse struct {
	// StatusCode is the HTTP status code to return (default: 200)
	StatusCode int
	Body       string
	// BodyFunc generates the body from the request and takes precedence over Body
	BodyFunc func(*http.Request) string
	Headers  http.Header
	// Delay simulates latency; it is cut short when the request context ends
	Delay time.Duration
	// Error simulates a transport failure
	Error error
}

type mockPattern struct {
	pattern  *regexp.Regexp
	response *MockResponse
}

// MockTransport is an http.RoundTripper serving registered responses, for
// driving HTTPFetcher and the crawler without a network. Unregistered URLs get 404.
type MockTransport struct {
	mutex     sync.Mutex
	sequences map[string][]*MockResponse
	patterns  []mockPattern
	requests  map[string]int
}

// NewMockTransport creates an empty MockTransport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		sequences: make(map[string][]*MockResponse),
		requests:  make(map[string]int),
	}
}

// RegisterResponse serves response for every request to url
func (m *MockTransport) RegisterResponse(url string, response *MockResponse) {
	m.RegisterSequence(url, response)
}

// RegisterSequence serves the responses in order, one per request; the last
// one repeats once the sequence is used up
func (m *MockTransport) RegisterSequence(url string, responses ...*MockResponse) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, r := range responses {
		withDefaults(r)
	}
	m.sequences[url] = responses
}

// RegisterHTML serves html with status 200
func (m *MockTransport) RegisterHTML(url, html string) {
	headers := make(http.Header)
	headers.Set("Content-Type", "text/html; charset=utf-8")
	m.RegisterResponse(url, &MockResponse{Body: html, Headers: headers})
}

// RegisterRedirect answers url with a 301 pointing at location
func (m *MockTransport) RegisterRedirect(url, location string) {
	headers := make(http.Header)
	headers.Set("Location", location)
	m.RegisterResponse(url, &MockResponse{StatusCode: http.StatusMovedPermanently, Headers: headers})
}

// RegisterError makes every request to url fail with err
func (m *MockTransport) RegisterError(url string, err error) {
	m.RegisterResponse(url, &MockResponse{Error: err})
}

// RegisterPattern serves response for URLs matching a regex with no exact registration
func (m *MockTransport) RegisterPattern(pattern string, response *MockResponse) error {
	regex, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.patterns = append(m.patterns, mockPattern{pattern: regex, response: withDefaults(response)})
	return nil
}

// Requests returns how many requests were made for url
func (m *MockTransport) Requests(url string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.requests[url]
}

func withDefaults(r *MockResponse) *MockResponse {
	if r.StatusCode == 0 {
		r.StatusCode = http.StatusOK
	}
	if r.Headers == nil {
		r.Headers = make(http.Header)
	}
	return r
}

// RoundTrip implements http.RoundTripper
func (m *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	url := req.URL.String()

	m.mutex.Lock()
	n := m.requests[url]
	m.requests[url]++

	var mockResp *MockResponse
	if seq := m.sequences[url]; len(seq) > 0 {
		if n >= len(seq) {
			n = len(seq) - 1
		}
		mockResp = seq[n]
	} else {
		for _, p := range m.patterns {
			if p.pattern.MatchString(url) {
				mockResp = p.response
				break
			}
		}
	}
	m.mutex.Unlock()

	if mockResp == nil {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Body:       io.NopCloser(bytes.NewBufferString("Not Found")),
			Header:     make(http.Header),
			Request:    req,
		}, nil
	}

	if mockResp.Delay > 0 {
		t := time.NewTimer(mockResp.Delay)
		select {
		case <-req.Context().Done():
			t.Stop()
			return nil, req.Context().Err()
		case <-t.C:
		}
	}
	if mockResp.Error != nil {
		return nil, mockResp.Error
	}

	body := mockResp.Body
	if mockResp.BodyFunc != nil {
		body = mockResp.BodyFunc(req)
	}
	return &http.Response{
		StatusCode:    mockResp.StatusCode,
		Body:          io.NopCloser(bytes.NewBufferString(body)),
		Header:        mockResp.Headers.Clone(),
		Request:       req,
		ContentLength: int64(len(body)),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
	}, nil
}
