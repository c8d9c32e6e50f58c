package detect

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/Lucaascf/coleta-produtos/extract"
)

// Per-field cap on discovered strategies. Cards carry dozens of utility
// classes; past the first few candidates the rest are noise.
const maxDiscoveredPerField = 4

// Discover scans one product card for plausible new strategies: class
// names that look field-bearing, attribute carriers for links and
// images, and the price-walk fallbacks. Discovered strategies start at
// the untried prior; the outcome loop decides whether they survive.
func Discover(container *html.Node) []Strategy {
	found := map[string][]Strategy{}
	seen := map[string]bool{}
	add := func(st Strategy) {
		desc := st.Field + "|" + st.Descriptor()
		if seen[desc] || len(found[st.Field]) >= maxDiscoveredPerField {
			return
		}
		seen[desc] = true
		found[st.Field] = append(found[st.Field], st)
	}

	extract.WalkElements(container, func(n *html.Node) bool {
		for _, class := range extract.Classes(n) {
			lower := strings.ToLower(class)
			switch {
			case strings.Contains(lower, "title") || strings.Contains(lower, "name"):
				if len(extract.Text(n)) >= 3 {
					add(Strategy{Field: FieldName, Kind: KindText, Selector: "." + class})
				}
			case strings.Contains(lower, "price") || strings.Contains(lower, "amount") ||
				strings.Contains(lower, "fraction"):
				if extract.PriceShaped(extract.OwnText(n)) {
					add(Strategy{Field: FieldCurrentPrice, Kind: KindText, Selector: "." + class})
				}
			}
		}
		switch n.Data {
		case "a":
			if href := extract.Attr(n, "href"); strings.HasPrefix(href, "http") || strings.HasPrefix(href, "/") {
				add(Strategy{Field: FieldURL, Kind: KindAttr, Selector: "a[href]", Attr: "href"})
			}
		case "img":
			// Lazy-loaded cards park the real URL in data-src and leave a
			// placeholder in src, so data-src ranks first.
			if extract.Attr(n, "data-src") != "" {
				add(Strategy{Field: FieldImageURL, Kind: KindAttr, Selector: "img[data-src]", Attr: "data-src"})
			}
			if extract.Attr(n, "src") != "" {
				add(Strategy{Field: FieldImageURL, Kind: KindAttr, Selector: "img[src]", Attr: "src"})
			}
		}
		return true
	})

	if extract.NearestPriceNode(container, false) != nil {
		add(Strategy{Field: FieldCurrentPrice, Kind: KindPrice, Selector: "current"})
	}
	if extract.NearestPriceNode(container, true) != nil {
		add(Strategy{Field: FieldOriginalPrice, Kind: KindPrice, Selector: "struck"})
	}

	var all []Strategy
	for _, field := range []string{
		FieldName, FieldCurrentPrice, FieldOriginalPrice, FieldURL, FieldImageURL,
	} {
		all = append(all, found[field]...)
	}
	return all
}
