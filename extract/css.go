// Package extract locates product data fields inside parsed listing pages.
//
// It implements the CSS selector subset the detector's strategies use:
//   - tag: "article", "img", "a"
//   - .class: ".poly-card", ".andes-money-amount__fraction"
//   - #id: "#root-app"
//   - tag.class: "h3.poly-component__title"
//   - tag[attr]: "img[data-src]", "a[href]"
//   - tag[attr=val]: "li[data-testid=result]"
//   - :not(.class): ".andes-money-amount:not(.andes-money-amount--previous)"
//   - combinations separated by space (descendant combinator)
//
// Listing markup uses nothing fancier, and working on raw *html.Node keeps
// the detector's structural discovery walk on the same tree.
package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// QuerySelectorAll returns all nodes under root matching a selector.
func QuerySelectorAll(root *html.Node, selector string) []*html.Node {
	parts := strings.Fields(selector)
	if len(parts) == 0 {
		return nil
	}

	matches := matchSimple(root, parts[0])

	// Descendant combinators: filter through subsequent parts.
	for i := 1; i < len(parts); i++ {
		var next []*html.Node
		for _, parent := range matches {
			next = append(next, matchSimple(parent, parts[i])...)
		}
		matches = next
	}

	return matches
}

// QuerySelector returns the first node matching a selector, or nil.
func QuerySelector(root *html.Node, selector string) *html.Node {
	matches := QuerySelectorAll(root, selector)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

// matchSimple finds all descendants of root matching a single selector part.
// root itself is never matched: strategies select within a container.
func matchSimple(root *html.Node, sel string) []*html.Node {
	m := parseSimpleSelector(sel)
	var results []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n != root && matchesSelector(n, m) {
			results = append(results, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return results
}

type simpleSelector struct {
	tag      string
	id       string
	class    string
	notClass string
	attrKey  string
	attrVal  string
}

// parseSimpleSelector parses "tag.class", "#id", "tag[attr=val]",
// ".class:not(.other)", etc.
func parseSimpleSelector(sel string) simpleSelector {
	var s simpleSelector

	// :not(.class) — the only pseudo-class listing strategies need
	// (distinguishes the current price from the struck-through one).
	if idx := strings.Index(sel, ":not("); idx >= 0 {
		inner := sel[idx+len(":not("):]
		if end := strings.IndexByte(inner, ')'); end >= 0 {
			s.notClass = strings.TrimPrefix(inner[:end], ".")
		}
		sel = sel[:idx]
	}

	// Attribute selector: tag[attr] or tag[attr=val].
	if idx := strings.IndexByte(sel, '['); idx >= 0 {
		attrPart := strings.TrimRight(sel[idx+1:], "]")
		sel = sel[:idx]
		if eqIdx := strings.IndexByte(attrPart, '='); eqIdx >= 0 {
			s.attrKey = attrPart[:eqIdx]
			s.attrVal = strings.Trim(attrPart[eqIdx+1:], `"'`)
		} else {
			s.attrKey = attrPart
		}
	}

	if idx := strings.IndexByte(sel, '#'); idx >= 0 {
		s.id = sel[idx+1:]
		sel = sel[:idx]
	}

	if idx := strings.IndexByte(sel, '.'); idx >= 0 {
		s.class = sel[idx+1:]
		sel = sel[:idx]
	}

	s.tag = sel
	return s
}

func matchesSelector(n *html.Node, s simpleSelector) bool {
	if n.Type != html.ElementNode {
		return false
	}

	if s.tag != "" && n.Data != s.tag {
		return false
	}

	if s.id != "" && Attr(n, "id") != s.id {
		return false
	}

	if s.class != "" && !hasClass(n, s.class) {
		return false
	}

	if s.notClass != "" && hasClass(n, s.notClass) {
		return false
	}

	if s.attrKey != "" {
		if s.attrVal != "" {
			if Attr(n, s.attrKey) != s.attrVal {
				return false
			}
		} else if !hasAttr(n, s.attrKey) {
			return false
		}
	}

	return true
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(Attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// Attr returns the value of an attribute on a node, or "".
func Attr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return true
		}
	}
	return false
}

// Classes returns the class list of a node.
func Classes(n *html.Node) []string {
	return strings.Fields(Attr(n, "class"))
}

// Text returns the whitespace-normalised text content of a node's subtree.
func Text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// WalkElements calls fn for every element node in the subtree, including
// root. fn returning false prunes the subtree below that node.
func WalkElements(root *html.Node, fn func(*html.Node) bool) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if !fn(n) {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
}
