// Package pipeline orchestrates one extraction run: cache lookup, paced
// paginated navigation, card extraction through the learning detector,
// price-history writes, and result caching.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/net/html"

	"github.com/Lucaascf/coleta-produtos/coleta/internal/browser"
	"github.com/Lucaascf/coleta-produtos/coleta/internal/cache"
	"github.com/Lucaascf/coleta-produtos/coleta/internal/detect"
	"github.com/Lucaascf/coleta-produtos/coleta/internal/pacing"
	"github.com/Lucaascf/coleta-produtos/produto"
)

// ErrExtractionExhausted means a page failed every retry. The returned
// Result still carries products from pages that completed before it.
var ErrExtractionExhausted = errors.New("pipeline: extraction attempts exhausted")

// Navigator fetches a URL and returns the rendered document.
// *browser.Session satisfies it; tests substitute fixtures.
type Navigator interface {
	Navigate(ctx context.Context, url string) (*html.Node, error)
}

// Config configures a Runner.
type Config struct {
	Site Site

	// Detector must carry container strategies; field strategies grow
	// through discovery.
	Detector *detect.Detector

	// Cache is optional. Nil disables result caching and price history.
	Cache *cache.Store

	// Pacer delays every navigation. Nil gets site defaults.
	Pacer *pacing.Pacer

	// MaxRetries bounds attempts per page. Default: 3.
	MaxRetries int

	// Now overrides the clock in tests. Default: time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

func (c *Config) defaults() {
	c.Site.defaults()
	if c.Pacer == nil {
		c.Pacer = pacing.New(pacing.Config{}, nil)
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Attempt records one navigation try, for diagnostics.
type Attempt struct {
	Page     int
	Number   int // 1-based within the page
	Outcome  string
	Duration time.Duration
}

// Attempt outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeBlocked = "blocked"
	OutcomeTimeout = "timeout"
	OutcomeEmpty   = "empty"
	OutcomeFailed  = "failed"
)

// Result is the outcome of one run.
type Result struct {
	Query    Query
	Products []produto.Product

	// FromCache is true when the run never touched the network.
	FromCache bool

	// Partial is true when the run ended before its page limit: a page
	// exhausted its retries or the context was cancelled.
	Partial bool

	PagesFetched int
	NavAttempts  int
	Attempts     []Attempt
}

// Runner executes queries. Safe for sequential reuse; one run at a time.
type Runner struct {
	cfg Config
}

// New creates a Runner.
func New(cfg Config) *Runner {
	cfg.defaults()
	return &Runner{cfg: cfg}
}

// Run executes a query end to end. Cached results return without any
// navigation. On ErrExtractionExhausted the result carries the products
// collected before the failing page; on cancellation likewise.
func (r *Runner) Run(ctx context.Context, nav Navigator, q Query) (*Result, error) {
	q = q.withDefaults()
	if err := q.Validate(); err != nil {
		return nil, err
	}
	res := &Result{Query: q}
	log := r.cfg.Logger

	key := q.Key()
	if r.cfg.Cache != nil {
		entry, err := r.cfg.Cache.Get(ctx, key)
		if err == nil {
			log.Info("pipeline: cache hit", "key", key, "products", len(entry.Products))
			res.Products = entry.Products
			res.FromCache = true
			return res, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			log.Warn("pipeline: cache read failed", "key", key, "error", err)
		}
	}

	seen := map[string]bool{}
	for page := 1; page <= q.MaxPages; page++ {
		products, done, err := r.fetchPage(ctx, nav, q, page, res)
		if err != nil {
			res.Partial = true
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			return res, err
		}
		for _, p := range products {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			res.Products = append(res.Products, p)
		}
		if q.MaxResults > 0 && len(res.Products) >= q.MaxResults {
			res.Products = res.Products[:q.MaxResults]
			break
		}
		if done {
			break
		}
	}

	r.recordRun(ctx, key, res.Products)
	log.Info("pipeline: run complete", "key", key,
		"products", len(res.Products), "pages", res.PagesFetched, "navs", res.NavAttempts)
	return res, nil
}

// fetchPage navigates to one listing page with retries and extracts its
// cards. done means pagination should stop: the listing ran out.
func (r *Runner) fetchPage(ctx context.Context, nav Navigator, q Query, page int, res *Result) ([]produto.Product, bool, error) {
	pageURL := buildURL(r.cfg.Site, q, page)
	log := r.cfg.Logger

	var lastErr error
	for attempt := 0; attempt < r.cfg.MaxRetries; attempt++ {
		if err := r.cfg.Pacer.Wait(ctx, attempt); err != nil {
			return nil, false, err
		}
		res.NavAttempts++
		started := r.cfg.Now()

		root, err := nav.Navigate(ctx, pageURL)
		if err != nil {
			r.record(res, page, attempt, classify(err), started)
			if ctx.Err() != nil {
				return nil, false, ctx.Err()
			}
			lastErr = err
			log.Warn("pipeline: navigation failed",
				"url", pageURL, "attempt", attempt+1, "error", err)
			continue
		}

		cards := r.containers(ctx, root)
		if len(cards) == 0 {
			r.record(res, page, attempt, OutcomeEmpty, started)
			if page > 1 {
				// Past the last listing page the card grid disappears.
				return nil, true, nil
			}
			lastErr = fmt.Errorf("pipeline: no product containers on %s", pageURL)
			log.Warn("pipeline: empty first page", "url", pageURL, "attempt", attempt+1)
			continue
		}
		if len(cards) > q.MaxPerPage {
			cards = cards[:q.MaxPerPage]
		}

		// Live markup teaches the detector new field strategies before
		// extraction uses the chains. Sampling several cards matters:
		// discount-only markup like struck prices may be absent from
		// the first card.
		for _, card := range cards[:min(len(cards), 5)] {
			for _, st := range detect.Discover(card) {
				r.cfg.Detector.Register(st)
			}
		}

		products, valid := r.assemble(ctx, cards, q)
		if valid == 0 {
			// Containers matched but every card failed a required field:
			// markup drift or a half-rendered page. Same handling as a
			// page with no containers at all.
			r.record(res, page, attempt, OutcomeEmpty, started)
			if page > 1 {
				return nil, true, nil
			}
			lastErr = fmt.Errorf("pipeline: no valid products on %s", pageURL)
			log.Warn("pipeline: page assembled zero products",
				"url", pageURL, "attempt", attempt+1)
			continue
		}

		r.record(res, page, attempt, OutcomeSuccess, started)
		res.PagesFetched++
		// A short page is the last one.
		return products, len(cards) < r.cfg.Site.PageSize, nil
	}

	return nil, false, fmt.Errorf("%w: page %d after %d attempts: %v",
		ErrExtractionExhausted, page, r.cfg.MaxRetries, lastErr)
}

func (r *Runner) record(res *Result, page, attempt int, outcome string, started time.Time) {
	res.Attempts = append(res.Attempts, Attempt{
		Page:     page,
		Number:   attempt + 1,
		Outcome:  outcome,
		Duration: r.cfg.Now().Sub(started),
	})
}

func classify(err error) string {
	switch {
	case errors.Is(err, browser.ErrNavigationBlocked):
		return OutcomeBlocked
	case errors.Is(err, browser.ErrNavigationTimeout):
		return OutcomeTimeout
	default:
		return OutcomeFailed
	}
}

// containers locates product cards via the ranked container chain. Every
// tried strategy reports its outcome, so a redesigned grid demotes the
// old selector after a few runs.
func (r *Runner) containers(ctx context.Context, root *html.Node) []*html.Node {
	for _, st := range r.cfg.Detector.Ranked(detect.FieldContainer) {
		cards := queryAll(root, st.Selector)
		r.cfg.Detector.ReportOutcome(ctx, detect.FieldContainer, st.Descriptor(), len(cards) > 0)
		if len(cards) > 0 {
			return cards
		}
	}
	return nil
}

// recordRun persists price history and the result cache entry. Both are
// best-effort: a read-only database degrades to memory-only operation.
// An empty result is never cached; a transient render glitch must not
// pin a miss for the whole TTL.
func (r *Runner) recordRun(ctx context.Context, key string, products []produto.Product) {
	if r.cfg.Cache == nil || len(products) == 0 {
		return
	}
	for _, p := range products {
		if _, err := r.cfg.Cache.RecordPrice(ctx, p.ID, p.CurrentPrice); err != nil {
			r.cfg.Logger.Warn("pipeline: price history write failed",
				"product", p.ID, "error", err)
		}
	}
	if err := r.cfg.Cache.Put(ctx, key, products); err != nil {
		r.cfg.Logger.Warn("pipeline: cache write failed", "key", key, "error", err)
	}
}
