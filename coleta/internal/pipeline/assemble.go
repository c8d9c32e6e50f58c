package pipeline

import (
	"context"
	"strings"

	"golang.org/x/net/html"

	"github.com/Lucaascf/coleta-produtos/coleta/internal/detect"
	"github.com/Lucaascf/coleta-produtos/extract"
	"github.com/Lucaascf/coleta-produtos/produto"
)

func queryAll(root *html.Node, selector string) []*html.Node {
	return extract.QuerySelectorAll(root, selector)
}

// assemble turns cards into validated products. Cards missing a required
// field are skipped, not failed: one broken card must not sink the page.
// valid counts cards that built successfully before the deals filter, so
// callers can tell a broken page from one with no promotions.
func (r *Runner) assemble(ctx context.Context, cards []*html.Node, q Query) (products []produto.Product, valid int) {
	for _, card := range cards {
		p, ok := r.buildProduct(ctx, card)
		if !ok {
			continue
		}
		valid++
		if q.Mode == ModeDeals && !p.IsPromotion {
			continue
		}
		products = append(products, p)
	}
	if valid < len(cards) {
		r.cfg.Logger.Debug("pipeline: cards skipped",
			"skipped", len(cards)-valid, "kept", len(products))
	}
	return products, valid
}

// buildProduct extracts one card. Name, current price, and URL are
// required; original price and image are optional.
func (r *Runner) buildProduct(ctx context.Context, card *html.Node) (produto.Product, bool) {
	var p produto.Product

	name, err := r.cfg.Detector.ExtractField(ctx, card, detect.FieldName)
	if err != nil {
		return p, false
	}
	priceText, err := r.cfg.Detector.ExtractField(ctx, card, detect.FieldCurrentPrice)
	if err != nil {
		return p, false
	}
	rawURL, err := r.cfg.Detector.ExtractField(ctx, card, detect.FieldURL)
	if err != nil {
		return p, false
	}

	price, err := produto.ParsePrice(priceText)
	if err != nil {
		return p, false
	}

	p.Name = produto.CleanName(name)
	p.CurrentPrice = price
	p.URL = r.resolveURL(rawURL)
	p.ID = produto.ExtractID(p.URL)
	p.FreeShipping = produto.HasFreeShipping(extract.Text(card))
	p.ScrapedAt = r.cfg.Now()

	if origText, err := r.cfg.Detector.ExtractField(ctx, card, detect.FieldOriginalPrice); err == nil {
		if orig, err := produto.ParsePrice(origText); err == nil {
			p.OriginalPrice = &orig
		}
	}
	if img, err := r.cfg.Detector.ExtractField(ctx, card, detect.FieldImageURL); err == nil {
		p.ImageURL = r.resolveURL(img)
	}

	p.Derive()
	return p, p.Valid()
}

// resolveURL absolutises card-relative links against the storefront root.
func (r *Runner) resolveURL(raw string) string {
	if strings.HasPrefix(raw, "/") {
		return strings.TrimSuffix(r.cfg.Site.BaseURL, "/") + raw
	}
	return raw
}
