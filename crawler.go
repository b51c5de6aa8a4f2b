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
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/agentberlin/scopecrawl/storage"
)

// DefaultTopWords is the length of the word table in reports
const DefaultTopWords = 50

var errRetryAbandoned = errors.New("retry abandoned: crawl stopping")

// PageResult describes what happened to one dequeued URL
type PageResult struct {
	URL            string
	FinalURL       string
	Depth          int
	StatusCode     int
	WordCount      int
	Duplicate      DupKind
	LowInformation bool
	LinksFound     int
	LinksEnqueued  int
	Error          error
}

// OnPageCrawledFunc is called after each dequeued URL has been fully processed
type OnPageCrawledFunc func(*PageResult)

// OnCrawlCompleteFunc is called once Run has finished.
// wasStopped is true when pending work remained (budget, deadline or cancellation).
type OnCrawlCompleteFunc func(wasStopped bool, report *Report)

// Crawler drives the fetch-parse pipeline over a CrawlState
type Crawler struct {
	cfg        *Config
	fetcher    Fetcher
	parser     Parser
	store      storage.Store
	scope      *Scope
	normalizer *Normalizer
	robots     *robotsCache
	state      *CrawlState
	log        logrus.FieldLogger
	now        func() time.Time

	onPageCrawled   OnPageCrawledFunc
	onCrawlComplete OnCrawlCompleteFunc
	mutex           sync.RWMutex

	sinceCheckpoint atomic.Int64
	checkpointNow   chan struct{}
}

// NewCrawler builds a crawler. A nil fetcher uses an HTTPFetcher whose
// redirects are limited to the scope, a nil parser uses HTMLParser and a nil
// store disables checkpointing.
func NewCrawler(cfg *Config, fetcher Fetcher, parser Parser, store storage.Store) (*Crawler, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	scope, err := NewScope(cfg.ScopeRules, cfg.DeniedExtensions)
	if err != nil {
		return nil, err
	}
	if fetcher == nil {
		fetcher = NewHTTPFetcher(HTTPFetcherConfig{
			UserAgent:      cfg.UserAgent,
			MaxBodySize:    10 * 1024 * 1024,
			DetectCharset:  true,
			RedirectFilter: scope.InScope,
		})
	}
	if parser == nil {
		parser = &HTMLParser{RequireAnchorText: cfg.RequireAnchorText}
	}

	return &Crawler{
		cfg:           cfg,
		fetcher:       fetcher,
		parser:        parser,
		store:         store,
		scope:         scope,
		normalizer:    NewNormalizer(cfg.VolatileParams),
		robots:        newRobotsCache(fetcher, cfg.UserAgent, cfg.FetchTimeout),
		state:         NewCrawlState(cfg),
		log:           cfg.logger(),
		now:           time.Now,
		checkpointNow: make(chan struct{}, 1),
	}, nil
}

// State returns the crawl state
func (cr *Crawler) State() *CrawlState {
	return cr.state
}

// Scope returns the compiled scope filter
func (cr *Crawler) Scope() *Scope {
	return cr.scope
}

// Normalizer returns the URL normalizer
func (cr *Crawler) Normalizer() *Normalizer {
	return cr.normalizer
}

// SetOnPageCrawled registers a callback run after every processed URL
func (cr *Crawler) SetOnPageCrawled(f OnPageCrawledFunc) {
	cr.mutex.Lock()
	cr.onPageCrawled = f
	cr.mutex.Unlock()
}

// SetOnCrawlComplete registers a callback run when Run finishes
func (cr *Crawler) SetOnCrawlComplete(f OnCrawlCompleteFunc) {
	cr.mutex.Lock()
	cr.onCrawlComplete = f
	cr.mutex.Unlock()
}

// Run resumes from the stored checkpoint, or seeds a fresh crawl, and
// processes the frontier until it is exhausted, a budget is spent or ctx is
// cancelled. In-flight pages are finished and a final checkpoint is saved
// before Run returns.
func (cr *Crawler) Run(ctx context.Context) (*Report, error) {
	if err := cr.bootstrap(); err != nil {
		return nil, err
	}

	runCtx := ctx
	if cr.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cr.cfg.Deadline)
		defer cancel()
	}
	// pages already handed to a worker run to completion even after a stop
	workCtx := context.WithoutCancel(ctx)

	cr.log.WithFields(logrus.Fields{
		"run_id":     cr.state.RunID,
		"pending":    cr.state.Frontier.Len(),
		"seen":       cr.state.Frontier.SeenCount(),
		"workers":    cr.cfg.Parallelism,
		"politeness": cr.cfg.PolitenessDelay,
	}).Info("crawl started")

	var g errgroup.Group
	dispatchDone := make(chan struct{})
	g.Go(func() error {
		defer close(dispatchDone)
		cr.dispatch(runCtx, workCtx)
		return nil
	})
	if cr.store != nil {
		g.Go(func() error {
			cr.checkpointLoop(dispatchDone)
			return nil
		})
	}
	_ = g.Wait()

	var saveErr error
	if cr.store != nil {
		saveErr = cr.checkpoint()
	}

	report := cr.state.Report(DefaultTopWords)
	wasStopped := report.Pending > 0
	cr.log.WithFields(logrus.Fields{
		"unique_pages": report.UniquePages,
		"pending":      report.Pending,
		"stopped":      wasStopped,
	}).Info("crawl finished")

	cr.mutex.RLock()
	onComplete := cr.onCrawlComplete
	cr.mutex.RUnlock()
	if onComplete != nil {
		onComplete(wasStopped, report)
	}

	if saveErr != nil {
		return report, fmt.Errorf("failed to save final checkpoint: %w", saveErr)
	}
	return report, nil
}

// bootstrap loads the stored checkpoint or seeds a fresh crawl
func (cr *Crawler) bootstrap() error {
	if cr.store != nil {
		if cr.cfg.Reset {
			if err := cr.store.Clear(); err != nil {
				return fmt.Errorf("failed to clear checkpoint: %w", err)
			}
		} else {
			resumed, err := cr.resume()
			if err != nil || resumed {
				return err
			}
		}
	}
	return cr.seed()
}

func (cr *Crawler) resume() (bool, error) {
	snap, err := cr.store.Load()
	if errors.Is(err, storage.ErrNoCheckpoint) {
		return false, nil
	}
	if err == nil {
		err = cr.state.Restore(snap)
	}
	if err != nil {
		if !errors.Is(err, storage.ErrCorrupt) {
			return false, fmt.Errorf("failed to load checkpoint: %w", err)
		}
		if !cr.cfg.AllowFreshOnCorrupt {
			if errors.Is(err, ErrCheckpointCorrupt) {
				return false, err
			}
			return false, fmt.Errorf("%w: %v", ErrCheckpointCorrupt, err)
		}
		cr.log.WithError(err).Warn("checkpoint corrupt, starting a fresh crawl")
		return false, nil
	}

	cr.log.WithFields(logrus.Fields{
		"run_id":       snap.RunID,
		"saved_at":     snap.SavedAt,
		"pending":      len(snap.Pending),
		"unique_pages": snap.UniquePages,
	}).Info("resumed from checkpoint")
	return true, nil
}

// seed enqueues the configured seeds at depth zero
func (cr *Crawler) seed() error {
	for _, raw := range cr.cfg.Seeds {
		u, err := cr.normalizer.Normalize(raw, "")
		if err != nil {
			cr.state.Diagnostics.Inc(DiagMalformedURL)
			cr.log.WithError(err).WithField("url", raw).Warn("skipping malformed seed")
			continue
		}
		if !cr.scope.InScope(u) {
			cr.state.Diagnostics.Inc(DiagOutOfScope)
			cr.log.WithField("url", u).Warn("skipping out of scope seed")
			continue
		}
		if cr.state.Frontier.Enqueue(u, 0, "") {
			cr.state.Traps.Observe(u)
		}
	}
	if cr.state.Frontier.Len() == 0 {
		return ErrNoSeeds
	}
	return nil
}

// dispatch hands eligible entries to the worker pool until the frontier is
// exhausted or runCtx ends or the page budget is spent
func (cr *Crawler) dispatch(runCtx, workCtx context.Context) {
	pool := NewWorkerPool(workCtx, cr.cfg.Parallelism, 0, cr.log)
	defer pool.Close()

	frontier := cr.state.Frontier
	dispatched := 0
	for {
		if runCtx.Err() != nil {
			cr.log.WithError(runCtx.Err()).Info("crawl stopping")
			return
		}
		if cr.cfg.MaxPages > 0 && dispatched >= cr.cfg.MaxPages {
			cr.log.WithField("max_pages", cr.cfg.MaxPages).Info("page budget reached")
			return
		}

		changes := frontier.Changes()
		entry, err := frontier.Dequeue(cr.now())
		if err == nil {
			dispatched++
			if err := pool.Submit(func() { cr.processEntry(runCtx, workCtx, entry) }); err != nil {
				frontier.Release(entry)
				return
			}
			continue
		}

		if errors.Is(err, ErrFrontierEmpty) {
			return
		}
		var cooldown *CooldownError
		if !errors.As(err, &cooldown) {
			cr.log.WithError(err).Error("unexpected frontier error")
			return
		}
		if !waitForWork(runCtx, changes, cooldown.Until) {
			return
		}
	}
}

// waitForWork sleeps until the frontier changes, the cooldown ends or ctx is
// done. It returns false for the latter.
func waitForWork(ctx context.Context, changes <-chan struct{}, until time.Time) bool {
	var timeout <-chan time.Time
	if !until.IsZero() {
		t := time.NewTimer(time.Until(until))
		defer t.Stop()
		timeout = t.C
	}
	select {
	case <-ctx.Done():
		return false
	case <-changes:
		return true
	case <-timeout:
		return true
	}
}

// pageUnit is the pure outcome of examining a fetched page; it is applied to
// the state in one commit
type pageUnit struct {
	record PageRecord
	tokens []string
	// claim is the normalized final URL when a redirect moved the page
	claim string
	links []string
}

func (cr *Crawler) processEntry(runCtx, workCtx context.Context, entry FrontierEntry) {
	log := cr.log.WithFields(logrus.Fields{"url": entry.URL, "depth": entry.Depth})
	// handed over after a stop: leave it pending for the next run
	if runCtx.Err() != nil {
		cr.state.Frontier.Release(entry)
		return
	}

	result := &PageResult{URL: entry.URL, Depth: entry.Depth}
	delta := diagDelta{}

	if cr.cfg.RespectRobots && !cr.robots.Allowed(workCtx, entry.URL) {
		delta.inc(DiagRobotsBlocked)
		result.Error = ErrRobotsTxtBlocked
		log.Debug("blocked by robots.txt")
		cr.finish(entry, delta, nil, result)
		return
	}

	resp, err := cr.fetchWithRetry(runCtx, workCtx, entry.URL, delta, log)
	if errors.Is(err, errRetryAbandoned) {
		cr.state.Frontier.Release(entry)
		return
	}
	if err != nil {
		delta.inc(failureCounter(err))
		result.Error = err
		log.WithError(err).Info("fetch failed")
		cr.finish(entry, delta, nil, result)
		return
	}

	delta.inc(DiagPagesFetched)
	result.StatusCode = resp.StatusCode
	unit, err := cr.examine(entry, resp, delta)
	if err != nil {
		result.Error = err
		log.WithError(err).Info("page dropped")
	}
	cr.finish(entry, delta, unit, result)
}

// fetchWithRetry retries transient failures with exponential backoff while the
// worker keeps the host's politeness slot
func (cr *Crawler) fetchWithRetry(runCtx, workCtx context.Context, url string, delta diagDelta, log logrus.FieldLogger) (*FetchResponse, error) {
	for attempt := 0; ; attempt++ {
		resp, err := cr.fetchOnce(workCtx, url)
		if err == nil {
			return resp, nil
		}
		if !isTransient(err) || attempt >= cr.cfg.MaxRetries {
			return nil, err
		}

		delta.inc(DiagRetry)
		wait := cr.cfg.backoff(attempt)
		log.WithError(err).WithFields(logrus.Fields{"attempt": attempt + 1, "backoff": wait}).Debug("retrying fetch")

		t := time.NewTimer(wait)
		select {
		case <-runCtx.Done():
			t.Stop()
			return nil, errRetryAbandoned
		case <-t.C:
		}
	}
}

func (cr *Crawler) fetchOnce(ctx context.Context, url string) (*FetchResponse, error) {
	if cr.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cr.cfg.FetchTimeout)
		defer cancel()
	}
	resp, err := cr.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{URL: url, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

func failureCounter(err error) string {
	var httpErr *HTTPError
	switch {
	case errors.Is(err, ErrOutOfScope):
		return DiagRedirectOutOfScope
	case errors.Is(err, ErrMalformedURL):
		return DiagMalformedURL
	case errors.Is(err, ErrRedirectLoop):
		return DiagRedirectLoop
	case errors.As(err, &httpErr):
		switch {
		case httpErr.Transient():
			return DiagHTTPServerError
		case httpErr.StatusCode >= 400:
			return DiagHTTPClientError
		default:
			return DiagHTTPOther
		}
	default:
		return DiagNetworkFailure
	}
}

// examine parses a fetched page and prepares everything the commit needs.
// It reads only immutable crawler state.
func (cr *Crawler) examine(entry FrontierEntry, resp *FetchResponse, delta diagDelta) (*pageUnit, error) {
	base := resp.FinalURL
	if base == "" {
		base = entry.URL
	}

	unit := &pageUnit{}
	pageURL := entry.URL
	if base != entry.URL {
		final, err := cr.normalizer.Normalize(base, "")
		if err != nil {
			delta.inc(DiagMalformedURL)
			return nil, err
		}
		if !cr.scope.InScope(final) {
			delta.inc(DiagRedirectOutOfScope)
			return nil, fmt.Errorf("%w: redirect to %s", ErrOutOfScope, final)
		}
		if final != entry.URL {
			unit.claim = final
			pageURL = final
		}
	}

	parsed, err := cr.parser.Parse(resp.Body, resp.ContentType(), base)
	if err != nil {
		delta.inc(DiagParseError)
		return nil, err
	}

	tokens := Tokenize(parsed.Text)
	content := cr.state.Aggregator.ContentWords(tokens)

	fetched := resp.FetchedAt
	if fetched.IsZero() {
		fetched = cr.now()
	}
	unit.tokens = tokens
	unit.record = PageRecord{
		URL:            pageURL,
		FetchTime:      fetched,
		StatusCode:     resp.StatusCode,
		WordCount:      len(content),
		Fingerprint:    Fingerprint(parsed.Text),
		LowInformation: cr.lowInformation(content),
	}
	if cr.cfg.NearDuplicateDistance > 0 {
		unit.record.SimHash = SimHash(content)
	}
	if unit.record.LowInformation {
		return unit, nil
	}

	nextDepth := entry.Depth + 1
	for _, link := range parsed.Links {
		u, err := cr.normalizer.Normalize(link, base)
		if err != nil {
			if errors.Is(err, ErrUnsupportedScheme) {
				delta.inc(DiagOutOfScope)
			} else {
				delta.inc(DiagMalformedURL)
			}
			continue
		}
		if !cr.scope.InScope(u) {
			delta.inc(DiagOutOfScope)
			continue
		}
		if cr.cfg.MaxDepth > 0 && nextDepth > cr.cfg.MaxDepth {
			delta.inc(DiagDepthLimited)
			continue
		}
		unit.links = append(unit.links, u)
	}
	return unit, nil
}

// lowInformation applies the word count and vocabulary ratio thresholds to
// the page's non-stop-words
func (cr *Crawler) lowInformation(content []string) bool {
	if cr.cfg.MinWords > 0 && len(content) < cr.cfg.MinWords {
		return true
	}
	if cr.cfg.MinUniqueRatio > 0 {
		if len(content) == 0 {
			return true
		}
		unique := make(map[string]struct{}, len(content))
		for _, w := range content {
			unique[w] = struct{}{}
		}
		if float64(len(unique))/float64(len(content)) < cr.cfg.MinUniqueRatio {
			return true
		}
	}
	return false
}

// finish applies a processed entry to the state as one commit and releases
// the host's politeness slot
func (cr *Crawler) finish(entry FrontierEntry, delta diagDelta, unit *pageUnit, result *PageResult) {
	cr.state.Commit(func() {
		defer cr.state.Frontier.Done(entry, cr.now())
		if unit != nil {
			cr.commitPage(entry, unit, delta, result)
		}
		cr.state.Diagnostics.apply(delta)
	})

	if cr.cfg.CheckpointEvery > 0 && cr.store != nil && cr.sinceCheckpoint.Add(1) >= int64(cr.cfg.CheckpointEvery) {
		select {
		case cr.checkpointNow <- struct{}{}:
		default:
		}
	}

	cr.mutex.RLock()
	onPage := cr.onPageCrawled
	cr.mutex.RUnlock()
	if onPage != nil {
		onPage(result)
	}
}

func (cr *Crawler) commitPage(entry FrontierEntry, unit *pageUnit, delta diagDelta, result *PageResult) {
	rec := unit.record
	result.FinalURL = rec.URL
	result.WordCount = rec.WordCount
	result.LowInformation = rec.LowInformation
	result.LinksFound = len(unit.links)

	if unit.claim != "" && !cr.state.Frontier.MarkSeen(unit.claim) {
		delta.inc(DiagRedirectDuplicate)
		result.Error = ErrRedirectDuplicate
		return
	}

	kind := cr.state.Fingerprints.CheckAndAdd(rec.Fingerprint, rec.SimHash)
	result.Duplicate = kind
	switch kind {
	case DupExact:
		delta.inc(DiagExactDuplicate)
	case DupNear:
		delta.inc(DiagNearDuplicate)
		if cr.cfg.CountNearDuplicateSubdomains {
			cr.state.Aggregator.RecordSubdomain(rec.URL)
		}
	default:
		if rec.LowInformation {
			delta.inc(DiagLowInformation)
		}
		cr.state.Aggregator.Record(rec, unit.tokens)
	}

	for _, u := range unit.links {
		if cr.admit(u, rec.URL, entry.Depth+1, delta) {
			result.LinksEnqueued++
		}
	}
}

// admit runs the trap heuristics and enqueues u
func (cr *Crawler) admit(u, from string, depth int, delta diagDelta) bool {
	if cr.state.Frontier.IsSeen(u) {
		return false
	}
	if reason := cr.state.Traps.Check(u); reason != TrapNone {
		delta.inc(diagTrapPrefix + string(reason))
		return false
	}
	if !cr.state.Frontier.Enqueue(u, depth, from) {
		return false
	}
	cr.state.Traps.Observe(u)
	return true
}

func (cr *Crawler) checkpointLoop(done <-chan struct{}) {
	var tick <-chan time.Time
	if cr.cfg.CheckpointInterval > 0 {
		t := time.NewTicker(cr.cfg.CheckpointInterval)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-done:
			return
		case <-tick:
			_ = cr.checkpoint()
		case <-cr.checkpointNow:
			_ = cr.checkpoint()
		}
	}
}

// checkpoint saves a snapshot. Failures are logged and counted; the crawl carries on.
func (cr *Crawler) checkpoint() error {
	snap := cr.state.Snapshot()
	cr.sinceCheckpoint.Store(0)
	if err := cr.store.Save(snap); err != nil {
		cr.state.Diagnostics.Inc(DiagCheckpointFailure)
		cr.log.WithError(err).Warn("checkpoint failed")
		return err
	}
	cr.log.WithFields(logrus.Fields{
		"pending":      len(snap.Pending),
		"seen":         len(snap.Seen),
		"unique_pages": snap.UniquePages,
	}).Debug("checkpoint saved")
	return nil
}
