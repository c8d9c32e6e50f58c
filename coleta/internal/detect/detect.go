// Package detect learns which extraction strategies work on the site's
// current markup. Each field carries an ordered chain of strategies;
// every attempt feeds back into per-strategy success counters, so the
// chain re-ranks itself as the site ships new markup. Counters persist
// through a Persister, surviving restarts.
package detect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/Lucaascf/coleta-produtos/extract"
	"github.com/Lucaascf/coleta-produtos/produto"
)

// ErrFieldNotFound is returned when every strategy for a field failed on
// the given container.
var ErrFieldNotFound = errors.New("detect: no strategy matched")

// Persister records strategy outcomes durably. *cache.Store satisfies it.
type Persister interface {
	SelectorOutcome(ctx context.Context, field, descriptor string, success bool) error
}

// Stat seeds a strategy's counters from persisted state.
type Stat struct {
	Field         string
	Descriptor    string
	SuccessCount  int
	FailureCount  int
	LastSuccessAt time.Time
}

// Config configures a Detector.
type Config struct {
	// Persister receives every outcome. Nil means in-memory learning only.
	Persister Persister
	// Now overrides the clock in tests. Default: time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type candidate struct {
	Strategy
	succ, fail  int
	lastSuccess time.Time
}

// confidence is the success ratio, with an optimistic prior of 0.5 for
// strategies that were never tried. New discoveries start mid-chain
// instead of last, so they get exercised.
func (c *candidate) confidence() float64 {
	total := c.succ + c.fail
	if total == 0 {
		return 0.5
	}
	return float64(c.succ) / float64(total)
}

// Detector holds the per-field strategy chains. Safe for concurrent use.
type Detector struct {
	cfg Config

	mu     sync.Mutex
	fields map[string][]*candidate
}

// New creates an empty detector. Register site defaults and Seed
// persisted counters before extracting.
func New(cfg Config) *Detector {
	cfg.defaults()
	return &Detector{cfg: cfg, fields: map[string][]*candidate{}}
}

// Register adds a strategy to its field's chain. Registering a
// descriptor that is already present is a no-op, so defaults and
// discoveries never duplicate.
func (d *Detector) Register(st Strategy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.register(st)
}

func (d *Detector) register(st Strategy) *candidate {
	desc := st.Descriptor()
	for _, c := range d.fields[st.Field] {
		if c.Descriptor() == desc {
			return c
		}
	}
	c := &candidate{Strategy: st}
	d.fields[st.Field] = append(d.fields[st.Field], c)
	return c
}

// Seed loads persisted counters into the chains. Unknown descriptors
// register as new strategies; malformed rows are skipped.
func (d *Detector) Seed(stats []Stat) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range stats {
		st, err := ParseDescriptor(s.Field, s.Descriptor)
		if err != nil {
			d.cfg.Logger.Warn("detect: skipping persisted strategy", "error", err)
			continue
		}
		c := d.register(st)
		c.succ = s.SuccessCount
		c.fail = s.FailureCount
		c.lastSuccess = s.LastSuccessAt
	}
}

// Ranked returns a field's strategies ordered by confidence, ties broken
// by most recent success. The slice is a snapshot.
func (d *Detector) Ranked(field string) []Strategy {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ranked(field)
}

func (d *Detector) ranked(field string) []Strategy {
	chain := d.fields[field]
	ordered := make([]*candidate, len(chain))
	copy(ordered, chain)
	sort.SliceStable(ordered, func(i, j int) bool {
		ci, cj := ordered[i].confidence(), ordered[j].confidence()
		if ci != cj {
			return ci > cj
		}
		return ordered[i].lastSuccess.After(ordered[j].lastSuccess)
	})
	result := make([]Strategy, len(ordered))
	for i, c := range ordered {
		result[i] = c.Strategy
	}
	return result
}

// ExtractField tries a field's strategies in ranked order against one
// product card and returns the first non-empty value. Every attempted
// strategy gets an outcome recorded; strategies after the winner are not
// charged a failure they did not earn.
func (d *Detector) ExtractField(ctx context.Context, container *html.Node, field string) (string, error) {
	for _, st := range d.Ranked(field) {
		value, ok := apply(st, container)
		d.ReportOutcome(ctx, field, st.Descriptor(), ok)
		if ok {
			return value, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrFieldNotFound, field)
}

// ReportOutcome feeds one attempt result into a strategy's counters and
// persists it. Persistence survives caller cancellation: a cancelled run
// still learned something. Persist failures are logged, not returned;
// in-memory ranking keeps working without the database.
func (d *Detector) ReportOutcome(ctx context.Context, field, descriptor string, success bool) {
	d.mu.Lock()
	for _, c := range d.fields[field] {
		if c.Descriptor() == descriptor {
			if success {
				c.succ++
				c.lastSuccess = d.cfg.Now()
			} else {
				c.fail++
			}
			break
		}
	}
	d.mu.Unlock()

	if d.cfg.Persister == nil {
		return
	}
	err := d.cfg.Persister.SelectorOutcome(context.WithoutCancel(ctx), field, descriptor, success)
	if err != nil {
		d.cfg.Logger.Warn("detect: outcome not persisted",
			"field", field, "descriptor", descriptor, "error", err)
	}
}

// Reset drops every strategy back to the untried prior. Registered and
// discovered strategies stay; only their counters go.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, chain := range d.fields {
		for _, c := range chain {
			c.succ, c.fail = 0, 0
			c.lastSuccess = time.Time{}
		}
	}
}

// Confidence returns the current success ratio of a strategy, or the 0.5
// prior when it was never tried or is unknown.
func (d *Detector) Confidence(field, descriptor string) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.fields[field] {
		if c.Descriptor() == descriptor {
			return c.confidence()
		}
	}
	return 0.5
}

// apply runs one strategy against a card. ok is false when the selector
// misses or the value fails field validation.
func apply(st Strategy, container *html.Node) (string, bool) {
	var value string
	switch st.Kind {
	case KindText:
		node := extract.QuerySelector(container, st.Selector)
		if node == nil {
			return "", false
		}
		value = extract.Text(node)
	case KindAttr:
		node := extract.QuerySelector(container, st.Selector)
		if node == nil {
			return "", false
		}
		value = extract.Attr(node, st.Attr)
	case KindPrice:
		node := extract.NearestPriceNode(container, st.Selector == "struck")
		if node == nil {
			return "", false
		}
		value = extract.OwnText(node)
	default:
		return "", false
	}
	if value == "" {
		return "", false
	}
	if isPriceField(st.Field) {
		// ParsePrice rejects negatives; zero is a legitimate price.
		if _, err := produto.ParsePrice(value); err != nil {
			return "", false
		}
	}
	return value, true
}

func isPriceField(field string) bool {
	return field == FieldCurrentPrice || field == FieldOriginalPrice
}
