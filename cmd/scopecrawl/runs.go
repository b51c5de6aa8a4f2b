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
	"time"

	"github.com/agentberlin/scopecrawl/internal/store"
)

// RunsCmd lists the runs recorded in a SQLite checkpoint
type RunsCmd struct {
	SQLite string `name:"sqlite" help:"SQLite checkpoint database." type:"path"`
}

func (c *RunsCmd) Run(g *Globals, e *env) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	path := c.SQLite
	if path == "" {
		path = cfg.Resolve(cfg.Checkpoint.SQLite)
	}
	if path == "" {
		return errors.New("--sqlite is required")
	}

	db, err := store.NewStore(path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %v", err)
	}
	defer db.Close()

	runs, err := db.GetRuns()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(e.stdout, "No runs recorded.")
		return nil
	}

	fmt.Fprintf(e.stdout, "%-6s %-38s %-20s %-10s %-8s %-8s %-12s\n", "ID", "Run", "Started", "Duration", "Pages", "Unique", "State")
	fmt.Fprintln(e.stdout, "----------------------------------------------------------------------------------------------------------")
	for _, r := range runs {
		started := time.Unix(r.StartedAt, 0).Format("2006-01-02 15:04")
		fmt.Fprintf(e.stdout, "%-6d %-38s %-20s %-10s %-8d %-8d %-12s\n",
			r.ID, r.RunID, started, formatDuration(r.StartedAt, r.FinishedAt), r.PagesCrawled, r.UniquePages, r.State)
	}
	return nil
}

// formatDuration formats the time between two unix timestamps
func formatDuration(start, end int64) string {
	if end == 0 {
		return "-"
	}
	seconds := end - start
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm%ds", minutes, seconds%60)
	}
	return fmt.Sprintf("%dh%dm", minutes/60, minutes%60)
}
