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

// scopecrawl
//
// Command-line interface for the scoped crawler. Crawls the UCI information
// and computer science domains, checkpointing as it goes, and writes the
// analytics report when the crawl finishes or stops.
//
// Usage:
//
//	scopecrawl <command> [flags]
//
// Commands:
//
//	crawl     Start a crawl, or resume the stored checkpoint
//	report    Render the report of a stored checkpoint
//	runs      List recorded runs (SQLite checkpoints only)
package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/agentberlin/scopecrawl/internal/config"
)

const version = "1.0.0"

// Globals are the flags shared by every command
type Globals struct {
	Config   string           `help:"YAML configuration file." short:"c" type:"path"`
	LogLevel string           `help:"Override logging.level (debug, info, warn, error)."`
	Version  kong.VersionFlag `help:"Show version information."`
}

type cli struct {
	Globals

	Crawl  CrawlCmd  `cmd:"" help:"Start a crawl, or resume the stored checkpoint."`
	Report ReportCmd `cmd:"" help:"Render the report of a stored checkpoint."`
	Runs   RunsCmd   `cmd:"" help:"List recorded runs of a SQLite checkpoint."`
}

// env carries the process level dependencies commands write to
type env struct {
	ctx       context.Context
	stdout    io.Writer
	stderr    io.Writer
	transport http.RoundTripper
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var c cli
	kctx := kong.Parse(&c,
		kong.Name("scopecrawl"),
		kong.Description("Scoped web crawler for the UCI ICS domains."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)
	err := kctx.Run(&c.Globals, &env{ctx: ctx, stdout: os.Stdout, stderr: os.Stderr})
	kctx.FatalIfErrorf(err)
}

// loadConfig reads the configuration file, if any, and applies the global
// overrides
func (g *Globals) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if g.Config == "" {
		def := config.Default()
		cfg = &def
	} else {
		loaded, err := config.Load(g.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if g.LogLevel != "" {
		cfg.Logging.Level = g.LogLevel
	}
	return cfg, nil
}
