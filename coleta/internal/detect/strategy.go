package detect

import (
	"fmt"
	"strings"
)

// Field names the detector learns strategies for. The container field is
// special: its strategies locate product cards on the page, the rest
// locate values inside one card.
const (
	FieldContainer     = "container"
	FieldName          = "name"
	FieldCurrentPrice  = "current_price"
	FieldOriginalPrice = "original_price"
	FieldURL           = "url"
	FieldImageURL      = "image_url"
)

// Kind is how a strategy reads its value from the matched node.
type Kind string

const (
	// KindText takes the text content of the first selector match.
	KindText Kind = "text"
	// KindAttr takes an attribute of the first selector match.
	KindAttr Kind = "attr"
	// KindPrice ignores the selector and walks the card for the
	// shallowest price-shaped node. Selector is "current" or "struck";
	// struck nodes carry the pre-discount price.
	KindPrice Kind = "price"
)

// Strategy is one way to extract a field. Strategies are identified by
// their descriptor, which is what the performance table is keyed on.
type Strategy struct {
	Field    string
	Kind     Kind
	Selector string
	Attr     string // KindAttr only
}

// Descriptor returns the stable string identity of a strategy, e.g.
// "text:.poly-component__title" or "attr:img[data-src]@data-src".
func (s Strategy) Descriptor() string {
	if s.Kind == KindAttr {
		return fmt.Sprintf("%s:%s@%s", s.Kind, s.Selector, s.Attr)
	}
	return fmt.Sprintf("%s:%s", s.Kind, s.Selector)
}

// ParseDescriptor reverses Descriptor. Persisted rows from older runs may
// reference strategy kinds this build no longer knows; callers skip those.
func ParseDescriptor(field, descriptor string) (Strategy, error) {
	kind, rest, ok := strings.Cut(descriptor, ":")
	if !ok || rest == "" {
		return Strategy{}, fmt.Errorf("detect: malformed descriptor %q", descriptor)
	}
	st := Strategy{Field: field, Kind: Kind(kind)}
	switch st.Kind {
	case KindText, KindPrice:
		st.Selector = rest
	case KindAttr:
		sel, attr, ok := strings.Cut(rest, "@")
		if !ok || attr == "" {
			return Strategy{}, fmt.Errorf("detect: attr descriptor %q missing attribute", descriptor)
		}
		st.Selector, st.Attr = sel, attr
	default:
		return Strategy{}, fmt.Errorf("detect: unknown strategy kind %q", kind)
	}
	return st, nil
}
