// Package coleta extracts product listings from a marketplace with
// markup that changes under it: a learning selector detector, a stealth
// browser layer, and an SQLite cache for results, price history, and
// selector performance.
package coleta

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"golang.org/x/net/html"
	_ "modernc.org/sqlite"

	"github.com/Lucaascf/coleta-produtos/coleta/internal/browser"
	"github.com/Lucaascf/coleta-produtos/coleta/internal/cache"
	"github.com/Lucaascf/coleta-produtos/coleta/internal/detect"
	"github.com/Lucaascf/coleta-produtos/coleta/internal/pacing"
	"github.com/Lucaascf/coleta-produtos/coleta/internal/pipeline"
	"github.com/Lucaascf/coleta-produtos/dbopen"
)

// Service is the extraction orchestrator. One Search runs at a time;
// concurrent callers queue on the session mutex.
type Service struct {
	cfg      *Config
	logger   *slog.Logger
	db       *sql.DB
	ownsDB   bool
	store    *cache.Store
	detector *detect.Detector
	runner   *pipeline.Runner
	mgr      *browser.Manager
	nav      pipeline.Navigator // non-nil overrides the browser
	rnd      *rand.Rand

	mu      sync.Mutex
	started bool
	closed  bool
}

// Option customises Service construction.
type Option func(*Service)

// WithNavigator replaces the managed browser with a custom Navigator.
// No Chrome is launched when set.
func WithNavigator(nav Navigator) Option {
	return func(s *Service) { s.nav = nav }
}

// WithDB injects an already-opened cache database (schema applied). The
// caller keeps ownership; Close will not close it.
func WithDB(db *sql.DB) Option {
	return func(s *Service) { s.db = db }
}

// WithRand pins pacing, gesture, and rotation randomness for tests.
func WithRand(r *rand.Rand) Option {
	return func(s *Service) { s.rnd = r }
}

// New creates a Service. Call Start before Search.
func New(cfg *Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(s)
	}

	if s.db == nil {
		db, err := dbopen.Open(cfg.DBPath,
			dbopen.WithMkdirAll(), dbopen.WithSchema(cache.Schema))
		if err != nil {
			return nil, fmt.Errorf("coleta: open cache db: %w", err)
		}
		s.db = db
		s.ownsDB = true
	}

	s.store = cache.New(s.db, cache.Config{TTL: cfg.Cache.TTL, Logger: logger})
	s.detector = detect.New(detect.Config{Persister: s.store, Logger: logger})
	for _, st := range defaultStrategies() {
		s.detector.Register(st)
	}

	s.runner = pipeline.New(pipeline.Config{
		Site: pipeline.Site{
			BaseURL:    cfg.Site.BaseURL,
			SearchBase: cfg.Site.SearchBase,
			PageSize:   cfg.Site.PageSize,
		},
		Detector:   s.detector,
		Cache:      s.store,
		Pacer:      pacing.New(pacing.Config{Min: cfg.Pacing.MinDelay, Max: cfg.Pacing.MaxDelay, Cap: cfg.Pacing.RetryCap}, s.rnd),
		MaxRetries: cfg.Limits.MaxRetries,
		Logger:     logger,
	})

	if s.nav == nil {
		s.mgr = browser.NewManager(browser.Config{
			RemoteURL:       cfg.Browser.Remote,
			Headful:         cfg.Browser.Headful,
			NavTimeout:      cfg.Browser.NavTimeout,
			SettleTimeout:   cfg.Browser.SettleTimeout,
			ReuseLimit:      cfg.Browser.FingerprintReuse,
			BlockSignatures: cfg.Site.BlockSignatures,
			Rand:            s.rnd,
			Logger:          logger,
		})
	}
	return s, nil
}

// Start seeds the detector from persisted selector stats, sweeps expired
// cache entries, and launches the browser.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("coleta: service is closed")
	}
	if s.started {
		return nil
	}

	stats, err := s.store.LoadSelectorStats(ctx)
	if err != nil {
		return fmt.Errorf("coleta: load selector stats: %w", err)
	}
	seeds := make([]detect.Stat, len(stats))
	for i, st := range stats {
		seeds[i] = detect.Stat{
			Field:         st.Field,
			Descriptor:    st.Descriptor,
			SuccessCount:  st.SuccessCount,
			FailureCount:  st.FailureCount,
			LastSuccessAt: st.LastSuccessAt,
		}
	}
	s.detector.Seed(seeds)
	s.logger.Info("coleta: selector learning seeded", "strategies", len(seeds))

	if n, err := s.store.SweepExpired(ctx); err != nil {
		s.logger.Warn("coleta: cache sweep failed", "error", err)
	} else if n > 0 {
		s.logger.Info("coleta: swept expired cache entries", "count", n)
	}

	if s.mgr != nil {
		if err := s.mgr.Start(ctx); err != nil {
			return err
		}
	}
	s.started = true
	return nil
}

// Search runs one query end to end: cache, navigation, extraction,
// history, caching. Friendly category names resolve through the
// configured category map.
func (s *Service) Search(ctx context.Context, q Query) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("coleta: service is closed")
	}
	if !s.started {
		return nil, fmt.Errorf("coleta: service not started")
	}

	if code, ok := s.cfg.Site.Categories[q.Category]; ok {
		q.Category = code
	}
	if q.MaxPages <= 0 {
		q.MaxPages = s.cfg.Limits.MaxPages
	}
	if q.MaxPerPage <= 0 {
		q.MaxPerPage = s.cfg.Limits.MaxProductsPerPage
	}

	nav := s.nav
	if nav == nil {
		session, err := s.mgr.NewSession(ctx)
		if err != nil {
			return nil, err
		}
		defer session.Close()
		nav = &sessionNavigator{session: session, logger: s.logger}
	}

	return s.runner.Run(ctx, nav, q)
}

// Stats reports cache hit rate, entry counts, history volume, and
// per-field selector accuracy.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.store.Stats(ctx)
}

// PriceHistory returns a product's observed prices, newest first.
func (s *Service) PriceHistory(ctx context.Context, productID string, limit int) ([]PriceRecord, error) {
	return s.store.PriceHistory(ctx, productID, limit)
}

// SelectorStats returns the persisted strategy counters.
func (s *Service) SelectorStats(ctx context.Context) ([]SelectorStat, error) {
	return s.store.LoadSelectorStats(ctx)
}

// InvalidateQuery drops the cached result for a query, forcing the next
// Search to hit the network.
func (s *Service) InvalidateQuery(ctx context.Context, q Query) error {
	if code, ok := s.cfg.Site.Categories[q.Category]; ok {
		q.Category = code
	}
	if q.MaxPages <= 0 {
		q.MaxPages = s.cfg.Limits.MaxPages
	}
	return s.store.Delete(ctx, q.Key())
}

// SweepCache physically removes expired cache entries.
func (s *Service) SweepCache(ctx context.Context) (int, error) {
	return s.store.SweepExpired(ctx)
}

// ResetLearning wipes the persisted and in-memory selector counters.
// Every strategy drops back to the untried prior.
func (s *Service) ResetLearning(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.ResetSelectorStats(ctx); err != nil {
		return err
	}
	s.detector.Reset()
	return nil
}

// Close shuts down the browser and, when owned, the database.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.mgr != nil {
		s.mgr.Close()
	}
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// sessionNavigator adapts a browser session to the pipeline. The gesture
// sequence plays after the render so the dwell paces the next request.
type sessionNavigator struct {
	session *browser.Session
	logger  *slog.Logger
}

func (n *sessionNavigator) Navigate(ctx context.Context, url string) (*html.Node, error) {
	root, err := n.session.Navigate(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := n.session.HumanInteract(ctx); err != nil {
		n.logger.Debug("coleta: interaction skipped", "error", err)
	}
	return root, nil
}
