package extract

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// priceShapedRe matches text that looks like a listed price: an optional
// currency marker and digits with Brazilian or plain grouping.
var priceShapedRe = regexp.MustCompile(`^(?:R\$|\$|€|£)?\s*\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{1,2})?$`)

// PriceShaped reports whether text plausibly contains a price. Used by the
// discovery heuristic to score candidate nodes, and by price strategies to
// reject matches that selected a label instead of a value.
func PriceShaped(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || len(text) > 20 {
		return false
	}
	return priceShapedRe.MatchString(text)
}

// NearestPriceNode finds the shallowest element under root whose own text
// is price-shaped, preferring struck-through elements when struck is true
// (those carry the pre-discount price). Returns nil when nothing matches.
func NearestPriceNode(root *html.Node, struck bool) *html.Node {
	var best *html.Node
	bestDepth := -1

	var walk func(n *html.Node, depth int, inStruck bool)
	walk = func(n *html.Node, depth int, inStruck bool) {
		if n.Type == html.ElementNode {
			if n.Data == "s" || n.Data == "del" {
				inStruck = true
			}
			if inStruck == struck && PriceShaped(OwnText(n)) {
				if bestDepth == -1 || depth < bestDepth {
					best = n
					bestDepth = depth
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, depth+1, inStruck)
		}
	}
	walk(root, 0, false)
	return best
}

// OwnText returns only the direct text children of n, not the subtree.
// A container's subtree text concatenates every price on the card; the
// value node is the one whose immediate text is the price.
func OwnText(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return strings.TrimSpace(sb.String())
}
