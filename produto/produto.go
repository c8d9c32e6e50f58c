// Package produto defines the product record extracted from listing pages
// and the parsing rules for the site's Brazilian-format field values.
package produto

import (
	"crypto/sha256"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Product is a single extracted listing. Field names follow the export
// contract: discount_percentage is always serialised, null when the
// product is not discounted.
type Product struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	CurrentPrice       float64   `json:"current_price"`
	OriginalPrice      *float64  `json:"original_price"`
	DiscountPercentage *float64  `json:"discount_percentage"`
	URL                string    `json:"url"`
	ImageURL           string    `json:"image_url"`
	FreeShipping       bool      `json:"free_shipping"`
	IsPromotion        bool      `json:"is_promotion"`
	ScrapedAt          time.Time `json:"scraped_at"`
}

// Derive fills the computed fields from the observed prices:
// discount_percentage = round(100 * (1 - current/original), 2) when an
// original price above the current one is present, and is_promotion is
// true exactly in that case. Call after the price fields are set.
func (p *Product) Derive() {
	p.DiscountPercentage = nil
	p.IsPromotion = false
	if p.OriginalPrice == nil || *p.OriginalPrice <= p.CurrentPrice || *p.OriginalPrice <= 0 {
		return
	}
	d := math.Round(100*(1-p.CurrentPrice / *p.OriginalPrice)*100) / 100
	p.DiscountPercentage = &d
	p.IsPromotion = true
}

// Valid reports whether the product carries the required fields.
func (p *Product) Valid() bool {
	return p.ID != "" && len(p.Name) >= 3 && p.CurrentPrice >= 0 && p.URL != ""
}

var nonPriceRe = regexp.MustCompile(`[^\d,.]`)

// ParsePrice converts listed price text to a float. The site mixes
// Brazilian grouping ("1.299,99", "1.049") with plain decimals ("99.90"),
// so the separator roles are decided positionally.
func ParsePrice(text string) (float64, error) {
	clean := nonPriceRe.ReplaceAllString(strings.TrimSpace(text), "")
	if clean == "" {
		return 0, fmt.Errorf("produto: no digits in price %q", text)
	}

	switch {
	case strings.Contains(clean, ",") && strings.Contains(clean, "."):
		if strings.LastIndex(clean, ",") > strings.LastIndex(clean, ".") {
			// Brazilian: 1.299,99
			clean = strings.ReplaceAll(clean, ".", "")
			clean = strings.Replace(clean, ",", ".", 1)
		} else {
			// US: 1,299.99
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case strings.Contains(clean, ","):
		// Comma is always decimal here: 1299,99 and 1,99 both parse the same.
		clean = strings.ReplaceAll(clean, ",", ".")
	case strings.Contains(clean, "."):
		parts := strings.Split(clean, ".")
		if len(parts) == 2 && len(parts[1]) <= 2 && len(parts[0]) < 3 {
			// Short integer part, 1-2 decimals: 99.90 is a decimal.
		} else {
			// 1.049 and 1.234.567 are thousand-grouped integers.
			clean = strings.ReplaceAll(clean, ".", "")
		}
	}

	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("produto: parse price %q: %w", text, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("produto: negative price %q", text)
	}
	return v, nil
}

var idPatterns = []*regexp.Regexp{
	regexp.MustCompile(`ML[AB]-?\d+`),
	regexp.MustCompile(`item[_-]?id[=:](\d+)`),
	regexp.MustCompile(`/(\d{10,})`),
}

// ExtractID pulls the site-assigned product ID out of a listing URL
// (MLB/MLA item codes, item_id params, or long numeric path segments).
// Falls back to a URL digest so history stays keyed even when the site
// hides the code behind a tracking redirect.
func ExtractID(url string) string {
	if url == "" {
		return ""
	}
	for _, re := range idPatterns {
		m := re.FindStringSubmatch(url)
		if m == nil {
			continue
		}
		if len(m) > 1 && m[1] != "" {
			return m[1]
		}
		return strings.ReplaceAll(m[0], "-", "")
	}
	sum := sha256.Sum256([]byte(url))
	return fmt.Sprintf("url-%x", sum[:8])
}

var shippingKeywords = []string{
	"frete grátis", "frete gratuito", "free shipping", "sem custo de envio",
}

// HasFreeShipping scans card text for the site's shipping badges.
func HasFreeShipping(text string) bool {
	text = strings.ToLower(text)
	for _, kw := range shippingKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

var spaceRe = regexp.MustCompile(`\s+`)

// CleanName normalises extracted title text.
func CleanName(s string) string {
	return spaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}
