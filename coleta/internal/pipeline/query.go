package pipeline

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ErrInvalidQuery is returned by Run before any navigation happens.
var ErrInvalidQuery = errors.New("pipeline: invalid query")

// Mode selects what a query walks: search results for a term, a category
// listing, or the site's deals page.
type Mode string

const (
	ModeTerm     Mode = "term"
	ModeCategory Mode = "category"
	ModeDeals    Mode = "deals"
)

// Query describes one extraction run.
type Query struct {
	Mode     Mode
	Term     string // ModeTerm
	Category string // ModeCategory: site category code, e.g. "MLB1051"

	// MaxPages bounds pagination. Default: 10.
	MaxPages int
	// MaxPerPage truncates oversized listings. Default: 50.
	MaxPerPage int
	// MaxResults caps the total product count. 0 = bounded by pages only.
	MaxResults int
}

func (q Query) withDefaults() Query {
	if q.MaxPages <= 0 {
		q.MaxPages = 10
	}
	if q.MaxPerPage <= 0 {
		q.MaxPerPage = 50
	}
	q.Term = strings.TrimSpace(q.Term)
	return q
}

// Validate rejects queries that cannot produce a URL.
func (q Query) Validate() error {
	switch q.Mode {
	case ModeTerm:
		if len(q.Term) < 2 {
			return fmt.Errorf("%w: term %q too short", ErrInvalidQuery, q.Term)
		}
	case ModeCategory:
		if q.Category == "" {
			return fmt.Errorf("%w: category mode without category", ErrInvalidQuery)
		}
	case ModeDeals:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidQuery, q.Mode)
	}
	if q.MaxPages < 0 || q.MaxPerPage < 0 || q.MaxResults < 0 {
		return fmt.Errorf("%w: negative result bounds", ErrInvalidQuery)
	}
	return nil
}

// Key is the canonical cache key: identical queries map to identical
// keys regardless of field casing or spacing.
func (q Query) Key() string {
	q = q.withDefaults()
	v := url.Values{}
	v.Set("mode", string(q.Mode))
	v.Set("pages", strconv.Itoa(q.MaxPages))
	if q.MaxResults > 0 {
		v.Set("limit", strconv.Itoa(q.MaxResults))
	}
	switch q.Mode {
	case ModeTerm:
		v.Set("q", strings.ToLower(q.Term))
	case ModeCategory:
		v.Set("cat", q.Category)
	}
	return v.Encode()
}

// Site holds the URL layout of the target marketplace.
type Site struct {
	// BaseURL is the storefront root, e.g. https://www.mercadolivre.com.br.
	BaseURL string
	// SearchBase is the listing host, e.g. https://lista.mercadolivre.com.br.
	SearchBase string
	// PageSize is how many results one listing page holds. Drives the
	// offset in paginated URLs. Default: 50.
	PageSize int
}

func (s *Site) defaults() {
	if s.BaseURL == "" {
		s.BaseURL = "https://www.mercadolivre.com.br"
	}
	if s.SearchBase == "" {
		s.SearchBase = "https://lista.mercadolivre.com.br"
	}
	if s.PageSize <= 0 {
		s.PageSize = 50
	}
}

// buildURL renders the listing URL for one page of a query. The site
// paginates by result offset ("_Desde_51"), not page number, except on
// the deals page.
func buildURL(site Site, q Query, page int) string {
	offset := (page-1)*site.PageSize + 1
	switch q.Mode {
	case ModeCategory:
		u := site.BaseURL + "/c/" + url.PathEscape(q.Category)
		if page > 1 {
			u += fmt.Sprintf("_Desde_%d", offset)
		}
		return u
	case ModeDeals:
		u := site.BaseURL + "/ofertas"
		if page > 1 {
			u += fmt.Sprintf("?page=%d", page)
		}
		return u
	default:
		slug := strings.ReplaceAll(strings.ToLower(q.Term), " ", "-")
		u := site.SearchBase + "/" + url.PathEscape(slug)
		if page > 1 {
			u += fmt.Sprintf("_Desde_%d", offset)
		}
		return u
	}
}
