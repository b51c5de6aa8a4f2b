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
	"errors"
	"fmt"

	"github.com/agentberlin/scopecrawl/internal/report"
	"github.com/agentberlin/scopecrawl/storage"
)

// ReportCmd renders the stored checkpoint without crawling
type ReportCmd struct {
	Checkpoint string `help:"Checkpoint file path." type:"path"`
	SQLite     string `name:"sqlite" help:"Read the checkpoint from this SQLite database." type:"path"`
	Output     string `help:"Write the report to this file instead of stdout." short:"o" type:"path"`
	Format     string `help:"Report format: text or json."`
	Top        int    `help:"Number of words in the frequency table."`
}

func (c *ReportCmd) Run(g *Globals, e *env) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if c.Checkpoint != "" {
		cfg.Checkpoint.Path = c.Checkpoint
		cfg.Checkpoint.SQLite = ""
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
	if c.Top > 0 {
		cfg.Report.TopWords = c.Top
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	cp, err := openCheckpoint(cfg)
	if err != nil {
		return err
	}
	defer cp.close()
	if cp.store == nil {
		return errors.New("no checkpoint configured")
	}

	snap, err := cp.store.Load()
	if errors.Is(err, storage.ErrNoCheckpoint) {
		return fmt.Errorf("no checkpoint found: %w", err)
	}
	if err != nil {
		return err
	}

	engineCfg, err := cfg.ToCrawlerConfig(cfg.NewLogger(e.stderr))
	if err != nil {
		return err
	}
	r, err := report.FromSnapshot(engineCfg, snap, cfg.Report.TopWords)
	if err != nil {
		return err
	}
	return writeReport(e, cfg, r)
}
