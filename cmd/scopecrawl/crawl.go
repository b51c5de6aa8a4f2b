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

package main

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/agentberlin/scopecrawl"
	"github.com/agentberlin/scopecrawl/internal/config"
	"github.com/agentberlin/scopecrawl/internal/report"
	"github.com/agentberlin/scopecrawl/internal/store"
	"github.com/agentberlin/scopecrawl/storage"
)

// CrawlCmd runs the crawler. Flags override the configuration file; zero
// values leave the configured setting alone.
type CrawlCmd struct {
	Seeds       []string      `arg:"" optional:"" help:"Seed URLs, added to those configured."`
	SeedsFile   string        `help:"File with one seed URL per line." type:"path"`
	Reset       bool          `help:"Discard the stored checkpoint and start from the seeds."`
	MaxPages    int           `help:"Stop after dispatching this many pages."`
	Deadline    time.Duration `help:"Stop after this much wall-clock time."`
	Parallelism int           `help:"Number of concurrent fetches." short:"p"`
	Checkpoint  string        `help:"Checkpoint file path." type:"path"`
	SQLite      string        `name:"sqlite" help:"Keep the checkpoint in this SQLite database instead of a file." type:"path"`
	Output      string        `help:"Write the report to this file instead of stdout." short:"o" type:"path"`
	Format      string        `help:"Report format: text or json."`
}

func (c *CrawlCmd) Run(g *Globals, e *env) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	c.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := cfg.NewLogger(e.stderr)

	engineCfg, err := cfg.ToCrawlerConfig(log)
	if err != nil {
		return err
	}
	engineCfg.Reset = c.Reset

	scope, err := scopecrawl.NewScope(engineCfg.ScopeRules, engineCfg.DeniedExtensions)
	if err != nil {
		return err
	}
	fetcherCfg := cfg.HTTPFetcherConfig(scope.InScope)
	fetcherCfg.Transport = e.transport
	fetcher := scopecrawl.NewHTTPFetcher(fetcherCfg)

	cp, err := openCheckpoint(cfg)
	if err != nil {
		return err
	}
	defer cp.close()

	cr, err := scopecrawl.NewCrawler(engineCfg, fetcher, nil, cp.store)
	if err != nil {
		return err
	}

	var pages atomic.Int64
	cr.SetOnPageCrawled(func(r *scopecrawl.PageResult) {
		pages.Add(1)
		entry := log.WithFields(logrus.Fields{"url": r.URL, "status": r.StatusCode, "depth": r.Depth})
		if r.Error != nil {
			entry.WithError(r.Error).Debug("page failed")
			return
		}
		entry.WithFields(logrus.Fields{"words": r.WordCount, "links": r.LinksEnqueued}).Debug("page crawled")
	})

	var run *store.CrawlRun
	if cp.db != nil {
		if run, err = cp.db.BeginRun(cr.State().RunID, time.Now().Unix()); err != nil {
			return err
		}
	}

	result, runErr := cr.Run(e.ctx)

	if run != nil {
		stats := store.RunStats{
			FinishedAt:   time.Now().Unix(),
			PagesCrawled: int(pages.Load()),
			State:        runState(result, runErr),
		}
		if result != nil {
			stats.RunID = result.RunID
			stats.UniquePages = result.UniquePages
			stats.Pending = result.Pending
		}
		if runErr != nil {
			stats.Error = runErr.Error()
		}
		if err := cp.db.FinishRun(run.ID, stats); err != nil {
			log.WithError(err).Warn("failed to record run")
		}
	}

	if result == nil {
		return runErr
	}
	if runErr != nil {
		log.WithError(runErr).Error("crawl finished with an error")
	}

	out := cr.State().Report(cfg.Report.TopWords)
	if err := writeReport(e, cfg, out); err != nil {
		return err
	}
	return runErr
}

func (c *CrawlCmd) apply(cfg *config.Config) {
	cfg.Seeds = append(cfg.Seeds, c.Seeds...)
	if c.SeedsFile != "" {
		cfg.SeedsFile = c.SeedsFile
	}
	if c.MaxPages > 0 {
		cfg.Budget.MaxPages = c.MaxPages
	}
	if c.Deadline > 0 {
		cfg.Budget.Deadline = config.DurationFrom(c.Deadline)
	}
	if c.Parallelism > 0 {
		cfg.Fetch.Parallelism = c.Parallelism
	}
	if c.Checkpoint != "" {
		cfg.Checkpoint.Path = c.Checkpoint
	}
	if c.SQLite != "" {
		cfg.Checkpoint.SQLite = c.SQLite
	}
	if c.Output != "" {
		cfg.Report.Path = c.Output
	}
	if c.Format != "" {
		cfg.Report.Format = c.Format
	}
}

func runState(result *scopecrawl.Report, err error) string {
	switch {
	case result == nil, err != nil:
		return store.RunStateFailed
	case result.Pending > 0:
		return store.RunStateStopped
	default:
		return store.RunStateCompleted
	}
}

// checkpoint is the store selected by the configuration. db is set when the
// checkpoint lives in SQLite, which also records run history.
type checkpoint struct {
	store storage.Store
	db    *store.Store
}

func openCheckpoint(cfg *config.Config) (*checkpoint, error) {
	if path := cfg.Resolve(cfg.Checkpoint.SQLite); path != "" {
		db, err := store.NewStore(path)
		if err != nil {
			return nil, fmt.Errorf("open checkpoint database: %w", err)
		}
		return &checkpoint{store: db, db: db}, nil
	}
	if path := cfg.Resolve(cfg.Checkpoint.Path); path != "" {
		return &checkpoint{store: storage.NewFileStore(path)}, nil
	}
	return &checkpoint{}, nil
}

func (c *checkpoint) close() {
	if c.db != nil {
		c.db.Close()
	}
}

func writeReport(e *env, cfg *config.Config, r *scopecrawl.Report) error {
	if cfg.Report.Path == "" {
		return report.Write(e.stdout, r, cfg.Report.Format)
	}
	return report.WriteFile(cfg.Resolve(cfg.Report.Path), r, cfg.Report.Format)
}
