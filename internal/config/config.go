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

package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/agentberlin/scopecrawl"
)

// Config is the YAML configuration of the scopecrawl command.
type Config struct {
	Seeds      []string         `yaml:"seeds"`
	SeedsFile  string           `yaml:"seeds_file"`
	Scope      ScopeConfig      `yaml:"scope"`
	Normalize  NormalizeConfig  `yaml:"normalize"`
	Traps      TrapsConfig      `yaml:"traps"`
	Dedup      DedupConfig      `yaml:"dedup"`
	Politeness PolitenessConfig `yaml:"politeness"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Parse      ParseConfig      `yaml:"parse"`
	Retry      RetryConfig      `yaml:"retry"`
	Budget     BudgetConfig     `yaml:"budget"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Aggregate  AggregateConfig  `yaml:"aggregate"`
	Logging    LoggingConfig    `yaml:"logging"`
	Report     ReportConfig     `yaml:"report"`

	// directory of the loaded file; relative paths resolve against it
	baseDir string
}

// ScopeConfig lists the host/path rules a URL must match.
type ScopeConfig struct {
	Rules            []scopecrawl.ScopeRule `yaml:"rules"`
	DeniedExtensions []string               `yaml:"denied_extensions"`
}

// NormalizeConfig tunes URL canonicalisation.
type NormalizeConfig struct {
	VolatileParams []string `yaml:"volatile_params"`
}

// TrapsConfig holds the trap heuristics ceilings; zero disables one.
type TrapsConfig struct {
	MaxPathDepth      int `yaml:"max_path_depth"`
	MaxSegmentRepeats int `yaml:"max_segment_repeats"`
	MaxURLsPerHost    int `yaml:"max_urls_per_host"`
	MaxQueryVariants  int `yaml:"max_query_variants"`
}

// DedupConfig controls duplicate detection.
type DedupConfig struct {
	NearDuplicateDistance        int  `yaml:"near_duplicate_distance"`
	CountNearDuplicateSubdomains bool `yaml:"count_near_duplicate_subdomains"`
}

// PolitenessConfig controls per-host pacing and robots.txt.
type PolitenessConfig struct {
	Delay             Duration `yaml:"delay"`
	RespectRobots     bool     `yaml:"respect_robots"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
}

// FetchConfig controls the HTTP client.
type FetchConfig struct {
	Parallelism   int      `yaml:"parallelism"`
	Timeout       Duration `yaml:"timeout"`
	UserAgent     string   `yaml:"user_agent"`
	MaxBodyBytes  int      `yaml:"max_body_bytes"`
	MaxRedirects  int      `yaml:"max_redirects"`
	DetectCharset bool     `yaml:"detect_charset"`
}

// ParseConfig controls link extraction.
type ParseConfig struct {
	RequireAnchorText bool `yaml:"require_anchor_text"`
}

// RetryConfig controls retries of transient fetch failures.
type RetryConfig struct {
	MaxRetries int      `yaml:"max_retries"`
	Backoff    Duration `yaml:"backoff"`
	MaxBackoff Duration `yaml:"max_backoff"`
}

// BudgetConfig bounds a single run; zero means unlimited.
type BudgetConfig struct {
	MaxPages int      `yaml:"max_pages"`
	MaxDepth int      `yaml:"max_depth"`
	Deadline Duration `yaml:"deadline"`
}

// CheckpointConfig selects the checkpoint backend and cadence. SQLite, when
// set, takes precedence over Path.
type CheckpointConfig struct {
	Path                string   `yaml:"path"`
	SQLite              string   `yaml:"sqlite"`
	Interval            Duration `yaml:"interval"`
	Every               int      `yaml:"every"`
	AllowFreshOnCorrupt bool     `yaml:"allow_fresh_on_corrupt"`
}

// AggregateConfig controls the statistics.
type AggregateConfig struct {
	RootDomain     string  `yaml:"root_domain"`
	StopwordsFile  string  `yaml:"stopwords_file"`
	MinWords       int     `yaml:"min_words"`
	MinUniqueRatio float64 `yaml:"min_unique_ratio"`
}

// LoggingConfig selects log verbosity and format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ReportConfig controls the report written at the end of a run.
type ReportConfig struct {
	Path     string `yaml:"path"`
	Format   string `yaml:"format"`
	TopWords int    `yaml:"top_words"`
}

// Default returns a Config populated with the UCI crawl defaults.
func Default() Config {
	engine := scopecrawl.NewDefaultConfig()
	return Config{
		Scope: ScopeConfig{
			Rules:            engine.ScopeRules,
			DeniedExtensions: engine.DeniedExtensions,
		},
		Normalize: NormalizeConfig{
			VolatileParams: engine.VolatileParams,
		},
		Traps: TrapsConfig{
			MaxPathDepth:      engine.Traps.MaxPathDepth,
			MaxSegmentRepeats: engine.Traps.MaxSegmentRepeats,
			MaxURLsPerHost:    engine.Traps.MaxURLsPerHost,
			MaxQueryVariants:  engine.Traps.MaxQueryVariants,
		},
		Dedup: DedupConfig{
			NearDuplicateDistance: 3,
		},
		Politeness: PolitenessConfig{
			Delay:         DurationFrom(engine.PolitenessDelay),
			RespectRobots: true,
		},
		Fetch: FetchConfig{
			Parallelism:   engine.Parallelism,
			Timeout:       DurationFrom(engine.FetchTimeout),
			UserAgent:     engine.UserAgent,
			MaxBodyBytes:  10 * 1024 * 1024,
			MaxRedirects:  10,
			DetectCharset: true,
		},
		Parse: ParseConfig{
			RequireAnchorText: engine.RequireAnchorText,
		},
		Retry: RetryConfig{
			MaxRetries: engine.MaxRetries,
			Backoff:    DurationFrom(engine.RetryBackoff),
			MaxBackoff: DurationFrom(engine.MaxRetryBackoff),
		},
		Checkpoint: CheckpointConfig{
			Path:     "scopecrawl.ckpt",
			Interval: DurationFrom(engine.CheckpointInterval),
			Every:    engine.CheckpointEvery,
		},
		Aggregate: AggregateConfig{
			RootDomain:     engine.RootDomain,
			MinWords:       50,
			MinUniqueRatio: 0.2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Report: ReportConfig{
			Format:   "text",
			TopWords: scopecrawl.DefaultTopWords,
		},
	}
}

// Load reads, merges, and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer fh.Close()

	cfg := Default()
	if err := decodeYAML(fh, &cfg); err != nil {
		return nil, err
	}
	cfg.baseDir = filepath.Dir(path)
	cfg.normalise()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromReader decodes configuration from an arbitrary reader. Relative
// paths resolve against the working directory.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decodeYAML(r, &cfg); err != nil {
		return nil, err
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Validate enforces the invariants the crawler relies on. Seeds are checked
// by the crawler itself, since a resumed run does not need any.
func (c Config) Validate() error {
	if len(c.Scope.Rules) == 0 {
		return errors.New("scope.rules must include at least one rule")
	}
	for i, r := range c.Scope.Rules {
		if strings.TrimSpace(r.Host) == "" {
			return fmt.Errorf("scope rule %d has empty host", i)
		}
	}
	if c.Fetch.Parallelism <= 0 {
		return fmt.Errorf("fetch.parallelism must be > 0 (got %d)", c.Fetch.Parallelism)
	}
	if c.Fetch.MaxBodyBytes < 0 {
		return fmt.Errorf("fetch.max_body_bytes must be >= 0 (got %d)", c.Fetch.MaxBodyBytes)
	}
	if strings.TrimSpace(c.Fetch.UserAgent) == "" {
		return errors.New("fetch.user_agent must be set")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must be >= 0 (got %d)", c.Retry.MaxRetries)
	}
	if c.Politeness.RequestsPerSecond < 0 {
		return fmt.Errorf("politeness.requests_per_second must be >= 0 (got %v)", c.Politeness.RequestsPerSecond)
	}
	if c.Budget.MaxPages < 0 {
		return fmt.Errorf("budget.max_pages must be >= 0 (got %d)", c.Budget.MaxPages)
	}
	if c.Budget.MaxDepth < 0 {
		return fmt.Errorf("budget.max_depth must be >= 0 (got %d)", c.Budget.MaxDepth)
	}
	if c.Dedup.NearDuplicateDistance < 0 || c.Dedup.NearDuplicateDistance > 32 {
		return fmt.Errorf("dedup.near_duplicate_distance must be within 0..32 (got %d)", c.Dedup.NearDuplicateDistance)
	}
	if c.Aggregate.MinWords < 0 {
		return fmt.Errorf("aggregate.min_words must be >= 0 (got %d)", c.Aggregate.MinWords)
	}
	if c.Aggregate.MinUniqueRatio < 0 || c.Aggregate.MinUniqueRatio > 1 {
		return fmt.Errorf("aggregate.min_unique_ratio must be within 0..1 (got %v)", c.Aggregate.MinUniqueRatio)
	}
	if c.Checkpoint.Every < 0 {
		return fmt.Errorf("checkpoint.every must be >= 0 (got %d)", c.Checkpoint.Every)
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json (got %q)", c.Logging.Format)
	}
	switch c.Report.Format {
	case "text", "json":
	default:
		return fmt.Errorf("report.format must be text or json (got %q)", c.Report.Format)
	}
	if c.Report.TopWords < 0 {
		return fmt.Errorf("report.top_words must be >= 0 (got %d)", c.Report.TopWords)
	}
	return nil
}

func (c *Config) normalise() {
	seeds := make([]string, 0, len(c.Seeds))
	for _, s := range c.Seeds {
		if s = strings.TrimSpace(s); s != "" {
			seeds = append(seeds, s)
		}
	}
	c.Seeds = seeds
	c.SeedsFile = strings.TrimSpace(c.SeedsFile)

	for i := range c.Scope.Rules {
		c.Scope.Rules[i].Host = strings.ToLower(strings.TrimSpace(c.Scope.Rules[i].Host))
		c.Scope.Rules[i].PathPrefix = strings.TrimSpace(c.Scope.Rules[i].PathPrefix)
	}
	c.Scope.DeniedExtensions = dedupeLower(c.Scope.DeniedExtensions)
	c.Normalize.VolatileParams = dedupeLower(c.Normalize.VolatileParams)

	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	c.Aggregate.RootDomain = strings.ToLower(strings.TrimSpace(c.Aggregate.RootDomain))
	c.Aggregate.StopwordsFile = strings.TrimSpace(c.Aggregate.StopwordsFile)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Report.Format = strings.ToLower(strings.TrimSpace(c.Report.Format))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Report.Format == "" {
		c.Report.Format = "text"
	}
}

func dedupeLower(values []string) []string {
	unique := make(map[string]struct{}, len(values))
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, exists := unique[v]; exists {
			continue
		}
		unique[v] = struct{}{}
		cleaned = append(cleaned, v)
	}
	return cleaned
}

// Resolve returns path relative to the directory of the loaded config file
func (c Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.baseDir == "" {
		return path
	}
	return filepath.Join(c.baseDir, path)
}

// LoadSeeds reads one URL per line; blank lines and lines starting with # are skipped.
func LoadSeeds(r io.Reader) ([]string, error) {
	var seeds []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		seeds = append(seeds, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read seeds: %w", err)
	}
	return seeds, nil
}

// AllSeeds returns the inline seeds followed by those of seeds_file
func (c Config) AllSeeds() ([]string, error) {
	seeds := append([]string(nil), c.Seeds...)
	if c.SeedsFile == "" {
		return seeds, nil
	}
	fh, err := os.Open(c.Resolve(c.SeedsFile))
	if err != nil {
		return nil, fmt.Errorf("open seeds file: %w", err)
	}
	defer fh.Close()

	fromFile, err := LoadSeeds(fh)
	if err != nil {
		return nil, err
	}
	return append(seeds, fromFile...), nil
}

// ToCrawlerConfig builds the engine configuration, reading the seeds and
// stop-word files.
func (c Config) ToCrawlerConfig(log logrus.FieldLogger) (*scopecrawl.Config, error) {
	seeds, err := c.AllSeeds()
	if err != nil {
		return nil, err
	}

	var stopwords map[string]struct{}
	if c.Aggregate.StopwordsFile != "" {
		fh, err := os.Open(c.Resolve(c.Aggregate.StopwordsFile))
		if err != nil {
			return nil, fmt.Errorf("open stopwords file: %w", err)
		}
		defer fh.Close()
		if stopwords, err = scopecrawl.LoadStopwords(fh); err != nil {
			return nil, err
		}
	}

	return &scopecrawl.Config{
		Seeds:            seeds,
		ScopeRules:       c.Scope.Rules,
		DeniedExtensions: c.Scope.DeniedExtensions,
		VolatileParams:   c.Normalize.VolatileParams,
		Traps: scopecrawl.TrapConfig{
			MaxPathDepth:      c.Traps.MaxPathDepth,
			MaxSegmentRepeats: c.Traps.MaxSegmentRepeats,
			MaxURLsPerHost:    c.Traps.MaxURLsPerHost,
			MaxQueryVariants:  c.Traps.MaxQueryVariants,
		},
		RootDomain:                   c.Aggregate.RootDomain,
		Stopwords:                    stopwords,
		NearDuplicateDistance:        c.Dedup.NearDuplicateDistance,
		CountNearDuplicateSubdomains: c.Dedup.CountNearDuplicateSubdomains,
		MinWords:                     c.Aggregate.MinWords,
		MinUniqueRatio:               c.Aggregate.MinUniqueRatio,
		RequireAnchorText:            c.Parse.RequireAnchorText,
		MaxDepth:                     c.Budget.MaxDepth,
		PolitenessDelay:              c.Politeness.Delay.Duration,
		Parallelism:                  c.Fetch.Parallelism,
		FetchTimeout:                 c.Fetch.Timeout.Duration,
		MaxRetries:                   c.Retry.MaxRetries,
		RetryBackoff:                 c.Retry.Backoff.Duration,
		MaxRetryBackoff:              c.Retry.MaxBackoff.Duration,
		RespectRobots:                c.Politeness.RespectRobots,
		UserAgent:                    c.Fetch.UserAgent,
		MaxPages:                     c.Budget.MaxPages,
		Deadline:                     c.Budget.Deadline.Duration,
		CheckpointInterval:           c.Checkpoint.Interval.Duration,
		CheckpointEvery:              c.Checkpoint.Every,
		AllowFreshOnCorrupt:          c.Checkpoint.AllowFreshOnCorrupt,
		Logger:                       log,
	}, nil
}

// HTTPFetcherConfig builds the fetcher settings; redirects are limited by filter.
func (c Config) HTTPFetcherConfig(filter func(string) bool) scopecrawl.HTTPFetcherConfig {
	return scopecrawl.HTTPFetcherConfig{
		UserAgent:         c.Fetch.UserAgent,
		MaxBodySize:       c.Fetch.MaxBodyBytes,
		MaxRedirects:      c.Fetch.MaxRedirects,
		RequestsPerSecond: c.Politeness.RequestsPerSecond,
		DetectCharset:     c.Fetch.DetectCharset,
		RedirectFilter:    filter,
	}
}

// NewLogger builds the logger described by the logging section.
func (c Config) NewLogger(out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	if level, err := logrus.ParseLevel(c.Logging.Level); err == nil {
		log.SetLevel(level)
	}
	if c.Logging.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}
	return log
}
