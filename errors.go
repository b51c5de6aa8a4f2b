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
	"errors"
	"fmt"
	"time"

	"github.com/agentberlin/scopecrawl/storage"
)

var (
	// ErrMalformedURL is returned when a URL cannot be parsed or resolved
	ErrMalformedURL = errors.New("malformed URL")
	// ErrUnsupportedScheme is returned by the normalizer for non-http(s) URLs
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
	// ErrFrontierEmpty is returned by Dequeue when nothing is pending and nothing is in flight
	ErrFrontierEmpty = errors.New("frontier exhausted")
	// ErrNoScopeRules is the configuration error for an empty scope rule set
	ErrNoScopeRules = errors.New("no valid scope rules configured")
	// ErrNoSeeds is returned when a fresh run has no in-scope seed URLs
	ErrNoSeeds = errors.New("no in-scope seed URLs")
	// ErrOutOfScope is returned when a redirect leaves the crawl scope
	ErrOutOfScope = errors.New("URL out of scope")
	// ErrCheckpointCorrupt is returned when a checkpoint exists but cannot be used
	ErrCheckpointCorrupt = fmt.Errorf("checkpoint corrupt: %w", storage.ErrCorrupt)
	// ErrRedirectDuplicate is reported when a redirect lands on an already seen URL
	ErrRedirectDuplicate = errors.New("redirect target already seen")
	// ErrRedirectLoop is returned when a redirect chain loops or exceeds the hop limit
	ErrRedirectLoop = errors.New("redirect loop or too many redirects")
	// ErrRobotsTxtBlocked is the error type for robots.txt errors
	ErrRobotsTxtBlocked = errors.New("URL blocked by robots.txt")
)

// NetworkError wraps a transport failure: DNS, connect, TLS, reset or timeout.
// Network errors are always transient.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPError is returned for a completed request with an unusable status code
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.StatusCode, e.URL)
}

// Transient reports whether the status is worth retrying (5xx and 429)
func (e *HTTPError) Transient() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// ParseError is returned when a response body is not usable HTML
type ParseError struct {
	URL    string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.URL, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// CooldownError is returned by Dequeue when pending work exists but no host is
// eligible yet. A zero Until means every host with pending work is busy and the
// caller should wait for an in-flight entry to finish.
type CooldownError struct {
	Until time.Time
}

func (e *CooldownError) Error() string {
	if e.Until.IsZero() {
		return "all pending hosts are busy"
	}
	return fmt.Sprintf("no host eligible until %s", e.Until.Format(time.RFC3339Nano))
}

// isTransient reports whether a fetch failure should be retried
func isTransient(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Transient()
	}
	return false
}
