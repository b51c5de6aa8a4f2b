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
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds the crawl engine settings
type Config struct {
	// Seeds are the starting URLs of a fresh run
	Seeds []string
	// ScopeRules decide which URLs may be crawled (required)
	ScopeRules []ScopeRule
	// DeniedExtensions are file extensions that are never fetched
	DeniedExtensions []string
	// VolatileParams are query parameters removed during normalization
	VolatileParams []string
	Traps          TrapConfig
	// RootDomain is the domain whose subdomains are counted
	RootDomain string
	// Stopwords are excluded from the word table; nil uses DefaultStopwords
	Stopwords map[string]struct{}
	// NearDuplicateDistance enables SimHash near-duplicate detection at that
	// Hamming distance; zero disables it
	NearDuplicateDistance int
	// CountNearDuplicateSubdomains still counts near-duplicates in the subdomain table
	CountNearDuplicateSubdomains bool
	// MinWords and MinUniqueRatio mark low-information pages; zero disables each check
	MinWords       int
	MinUniqueRatio float64
	// RequireAnchorText follows only links with visible anchor text when the
	// default HTMLParser is used
	RequireAnchorText bool
	// MaxDepth limits link depth from the seeds; zero is unlimited
	MaxDepth int

	PolitenessDelay time.Duration
	Parallelism     int
	FetchTimeout    time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
	RespectRobots   bool
	UserAgent       string

	// MaxPages stops dequeuing after that many entries; zero is unlimited
	MaxPages int
	// Deadline stops dequeuing after that much wall-clock time; zero is unlimited
	Deadline time.Duration

	CheckpointInterval time.Duration
	CheckpointEvery    int
	// Reset discards any stored checkpoint and starts from Seeds
	Reset bool
	// AllowFreshOnCorrupt starts fresh instead of failing on a corrupt checkpoint
	AllowFreshOnCorrupt bool

	Logger logrus.FieldLogger
}

// NewDefaultConfig returns the engine defaults. Politeness, retries and the
// scope match the UCI crawl; content filters that drop pages are off.
func NewDefaultConfig() *Config {
	return &Config{
		ScopeRules:         append([]ScopeRule(nil), DefaultScopeRules...),
		DeniedExtensions:   append([]string(nil), DefaultDeniedExtensions...),
		VolatileParams:     append([]string(nil), DefaultVolatileParams...),
		Traps:              DefaultTrapConfig(),
		RootDomain:         "ics.uci.edu",
		PolitenessDelay:    500 * time.Millisecond,
		Parallelism:        4,
		FetchTimeout:       30 * time.Second,
		MaxRetries:         3,
		RetryBackoff:       time.Second,
		MaxRetryBackoff:    30 * time.Second,
		RespectRobots:      true,
		RequireAnchorText:  true,
		UserAgent:          "scopecrawl/1.0",
		CheckpointInterval: time.Minute,
		CheckpointEvery:    100,
	}
}

func (c *Config) validate() error {
	if len(c.ScopeRules) == 0 {
		return ErrNoScopeRules
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1, got %d", c.Parallelism)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative, got %d", c.MaxRetries)
	}
	if c.NearDuplicateDistance < 0 || c.NearDuplicateDistance > 32 {
		return fmt.Errorf("near duplicate distance must be within 0..32, got %d", c.NearDuplicateDistance)
	}
	if c.MinUniqueRatio < 0 || c.MinUniqueRatio > 1 {
		return fmt.Errorf("min unique ratio must be within 0..1, got %v", c.MinUniqueRatio)
	}
	return nil
}

func (c *Config) logger() logrus.FieldLogger {
	if c.Logger != nil {
		return c.Logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// backoff returns the wait before retry number attempt (0-based)
func (c *Config) backoff(attempt int) time.Duration {
	d := c.RetryBackoff
	for i := 0; i < attempt; i++ {
		d *= 2
		if c.MaxRetryBackoff > 0 && d >= c.MaxRetryBackoff {
			return c.MaxRetryBackoff
		}
	}
	if c.MaxRetryBackoff > 0 && d > c.MaxRetryBackoff {
		return c.MaxRetryBackoff
	}
	return d
}
