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
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// robotsCache evaluates robots.txt rules per host. A host's robots.txt is
// fetched once; unreachable or erroring robots.txt allows everything.
type robotsCache struct {
	fetcher   Fetcher
	userAgent string
	timeout   time.Duration

	mu    sync.Mutex
	hosts map[string]*robotsEntry
}

type robotsEntry struct {
	once  sync.Once
	rules *robotstxt.RobotsData
}

func newRobotsCache(fetcher Fetcher, userAgent string, timeout time.Duration) *robotsCache {
	return &robotsCache{
		fetcher:   fetcher,
		userAgent: userAgent,
		timeout:   timeout,
		hosts:     make(map[string]*robotsEntry),
	}
}

// Allowed reports whether rawURL may be fetched
func (r *robotsCache) Allowed(ctx context.Context, rawURL string) bool {
	target, err := url.Parse(rawURL)
	if err != nil || !target.IsAbs() {
		return false
	}
	host := strings.ToLower(target.Host)

	r.mu.Lock()
	entry := r.hosts[host]
	if entry == nil {
		entry = &robotsEntry{}
		r.hosts[host] = entry
	}
	r.mu.Unlock()

	entry.once.Do(func() {
		entry.rules = r.fetch(ctx, target.Scheme+"://"+target.Host+"/robots.txt")
	})
	if entry.rules == nil {
		return true
	}

	agent := r.userAgent
	if agent == "" {
		agent = "*"
	}
	return entry.rules.TestAgent(target.RequestURI(), agent)
}

func (r *robotsCache) fetch(ctx context.Context, robotsURL string) *robotstxt.RobotsData {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	resp, err := r.fetcher.Fetch(ctx, robotsURL)
	if err != nil || resp.StatusCode >= 500 {
		return nil
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, resp.Body)
	if err != nil {
		return nil
	}
	return data
}
