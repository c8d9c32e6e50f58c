package coleta

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/html"

	"github.com/Lucaascf/coleta-produtos/coleta/internal/cache"
	"github.com/Lucaascf/coleta-produtos/coleta/internal/detect"
	"github.com/Lucaascf/coleta-produtos/dbopen"
)

// fakeNav serves fixture documents per URL.
type fakeNav struct {
	t     *testing.T
	pages map[string]string
	calls []string
}

func (f *fakeNav) Navigate(ctx context.Context, url string) (*html.Node, error) {
	f.calls = append(f.calls, url)
	doc, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("no listing at %s", url)
	}
	return html.Parse(strings.NewReader(doc))
}

func listing(ids ...int) string {
	var sb strings.Builder
	sb.WriteString(`<html><body>`)
	for _, id := range ids {
		fmt.Fprintf(&sb, `<div class="poly-card">
			<a class="poly-component__title" href="https://produto.test/MLB-%d">Fone Bluetooth Modelo %d</a>
			<div class="poly-price__current"><span class="andes-money-amount__fraction">1.299</span></div>
			<s class="andes-money-amount--previous"><span class="andes-money-amount__fraction">1.599</span></s>
			<img data-src="https://img.test/%d.jpg">
		</div>`, id, id, id)
	}
	sb.WriteString(`</body></html>`)
	return sb.String()
}

func testService(t *testing.T, nav Navigator) *Service {
	t.Helper()
	cfg := &Config{}
	cfg.Pacing.MinDelay = time.Nanosecond
	cfg.Pacing.MaxDelay = 2 * time.Nanosecond

	db := dbopen.OpenMemory(t, dbopen.WithSchema(cache.Schema))
	svc, err := New(cfg, nil, WithNavigator(nav), WithDB(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestSearchTermEndToEnd(t *testing.T) {
	// WHAT: a term search extracts products through the default selector
	// chains and records prices and selector outcomes.
	nav := &fakeNav{t: t, pages: map[string]string{
		"https://lista.mercadolivre.com.br/fone-bluetooth": listing(101, 102, 103),
	}}
	svc := testService(t, nav)
	ctx := context.Background()

	res, err := svc.Search(ctx, Query{Mode: ModeTerm, Term: "fone bluetooth"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Products) != 3 {
		t.Fatalf("products: got %d, want 3", len(res.Products))
	}

	p := res.Products[0]
	if p.ID != "MLB101" || p.CurrentPrice != 1299 || !p.IsPromotion {
		t.Errorf("product fields wrong: %+v", p)
	}

	hist, err := svc.PriceHistory(ctx, "MLB101", 5)
	if err != nil || len(hist) != 1 {
		t.Errorf("history: got %d records, err %v", len(hist), err)
	}

	stats, err := svc.SelectorStats(ctx)
	if err != nil {
		t.Fatalf("selector stats: %v", err)
	}
	if len(stats) == 0 {
		t.Error("no selector outcomes persisted")
	}
}

func TestSearchServedFromCacheAndInvalidation(t *testing.T) {
	nav := &fakeNav{t: t, pages: map[string]string{
		"https://lista.mercadolivre.com.br/mouse": listing(7),
	}}
	svc := testService(t, nav)
	ctx := context.Background()
	q := Query{Mode: ModeTerm, Term: "mouse"}

	if _, err := svc.Search(ctx, q); err != nil {
		t.Fatalf("first search: %v", err)
	}
	res, err := svc.Search(ctx, q)
	if err != nil {
		t.Fatalf("second search: %v", err)
	}
	if !res.FromCache {
		t.Error("second search not served from cache")
	}
	if len(nav.calls) != 1 {
		t.Errorf("navigations: got %d, want 1", len(nav.calls))
	}

	if err := svc.InvalidateQuery(ctx, q); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	res, err = svc.Search(ctx, q)
	if err != nil {
		t.Fatalf("search after invalidation: %v", err)
	}
	if res.FromCache {
		t.Error("invalidated query still served from cache")
	}
}

func TestSearchResolvesCategoryName(t *testing.T) {
	// WHAT: friendly category names map to site codes before the URL is
	// built; raw codes pass through.
	nav := &fakeNav{t: t, pages: map[string]string{
		"https://www.mercadolivre.com.br/c/MLB1055": listing(1),
	}}
	svc := testService(t, nav)

	if _, err := svc.Search(context.Background(),
		Query{Mode: ModeCategory, Category: "celulares"}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if nav.calls[0] != "https://www.mercadolivre.com.br/c/MLB1055" {
		t.Errorf("category URL: got %q", nav.calls[0])
	}
}

func TestSearchInvalidQuery(t *testing.T) {
	svc := testService(t, &fakeNav{t: t})
	_, err := svc.Search(context.Background(), Query{Mode: ModeTerm, Term: "x"})
	if !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("want ErrInvalidQuery, got %v", err)
	}
}

func TestStatsAfterRuns(t *testing.T) {
	nav := &fakeNav{t: t, pages: map[string]string{
		"https://lista.mercadolivre.com.br/tv": listing(1, 2),
	}}
	svc := testService(t, nav)
	ctx := context.Background()
	q := Query{Mode: ModeTerm, Term: "tv"}

	svc.Search(ctx, q)
	svc.Search(ctx, q) // cache hit

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalEntries != 1 {
		t.Errorf("entries: got %d, want 1", stats.TotalEntries)
	}
	if stats.HitRate <= 0 || stats.HitRate >= 1 {
		t.Errorf("hit rate: got %v, want in (0, 1)", stats.HitRate)
	}
	if stats.TrackedProducts != 2 {
		t.Errorf("tracked products: got %d, want 2", stats.TrackedProducts)
	}
	if len(stats.SelectorAccuracyByField) == 0 {
		t.Error("no per-field selector accuracy")
	}
}

func TestResetLearning(t *testing.T) {
	nav := &fakeNav{t: t, pages: map[string]string{
		"https://lista.mercadolivre.com.br/cadeira": listing(9),
	}}
	svc := testService(t, nav)
	ctx := context.Background()

	svc.Search(ctx, Query{Mode: ModeTerm, Term: "cadeira"})
	if err := svc.ResetLearning(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}

	stats, _ := svc.SelectorStats(ctx)
	if len(stats) != 0 {
		t.Errorf("selector stats after reset: got %d rows", len(stats))
	}
}

func TestDefaultStrategiesWellFormed(t *testing.T) {
	// WHY: a typo in a default descriptor would silently break seeding.
	fields := map[string]bool{}
	for _, st := range defaultStrategies() {
		fields[st.Field] = true
		got, err := detect.ParseDescriptor(st.Field, st.Descriptor())
		if err != nil {
			t.Errorf("strategy %q: %v", st.Descriptor(), err)
			continue
		}
		if got != st {
			t.Errorf("descriptor %q does not round-trip", st.Descriptor())
		}
	}
	for _, f := range []string{
		detect.FieldContainer, detect.FieldName, detect.FieldCurrentPrice,
		detect.FieldOriginalPrice, detect.FieldURL, detect.FieldImageURL,
	} {
		if !fields[f] {
			t.Errorf("no default strategies for field %q", f)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coleta.yaml")
	doc := `
db_path: /tmp/cache.db
site:
  page_size: 25
  categories:
    perifericos: MLB1712
pacing:
  min_delay: 2s
  max_delay: 5s
limits:
  max_pages: 4
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "/tmp/cache.db" || cfg.Site.PageSize != 25 || cfg.Limits.MaxPages != 4 {
		t.Errorf("explicit values lost: %+v", cfg)
	}
	if cfg.Pacing.MinDelay != 2*time.Second || cfg.Pacing.MaxDelay != 5*time.Second {
		t.Errorf("pacing: got %v/%v", cfg.Pacing.MinDelay, cfg.Pacing.MaxDelay)
	}
	if cfg.Site.Categories["perifericos"] != "MLB1712" {
		t.Error("custom category lost")
	}
	// Defaults fill what the file leaves out.
	if cfg.Site.BaseURL == "" || cfg.Cache.TTL != 2*time.Hour || cfg.Limits.MaxRetries != 3 {
		t.Errorf("defaults not applied: %+v", cfg)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing file must error")
	}
}
