package coleta

import (
	"github.com/Lucaascf/coleta-produtos/coleta/internal/browser"
	"github.com/Lucaascf/coleta-produtos/coleta/internal/cache"
	"github.com/Lucaascf/coleta-produtos/coleta/internal/detect"
	"github.com/Lucaascf/coleta-produtos/coleta/internal/pipeline"
	"github.com/Lucaascf/coleta-produtos/produto"
)

// Public aliases for the internal types callers work with.

// Product is one extracted listing.
type Product = produto.Product

// Query describes one extraction run.
type Query = pipeline.Query

// Mode selects what a query walks.
type Mode = pipeline.Mode

const (
	ModeTerm     = pipeline.ModeTerm
	ModeCategory = pipeline.ModeCategory
	ModeDeals    = pipeline.ModeDeals
)

// Result is the outcome of one run.
type Result = pipeline.Result

// Navigator fetches a URL and returns the rendered document. Production
// uses the managed browser; tests inject fixtures via WithNavigator.
type Navigator = pipeline.Navigator

// Stats is a snapshot of cache and learning effectiveness.
type Stats = cache.Stats

// PriceRecord is one observed price for a product.
type PriceRecord = cache.PriceRecord

// SelectorStat is one persisted strategy counter row.
type SelectorStat = cache.SelectorStat

// Strategy is one way to extract a field.
type Strategy = detect.Strategy

// Fingerprint is the identity a browser session presents.
type Fingerprint = browser.Fingerprint
