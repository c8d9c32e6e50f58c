package coleta

import (
	"github.com/Lucaascf/coleta-produtos/coleta/internal/detect"
)

// defaultStrategies are the selector chains for the site's current
// markup generations: the poly-card deals layout, the ui-search results
// layout, and the selector-free price walks as last resort. They are
// starting points; discovery and the outcome counters take over from
// the first real page.
func defaultStrategies() []detect.Strategy {
	return []detect.Strategy{
		// Product cards.
		{Field: detect.FieldContainer, Kind: detect.KindText, Selector: ".poly-card"},
		{Field: detect.FieldContainer, Kind: detect.KindText, Selector: ".ui-search-result"},
		{Field: detect.FieldContainer, Kind: detect.KindText, Selector: "li.ui-search-layout__item"},
		{Field: detect.FieldContainer, Kind: detect.KindText, Selector: ".andes-card"},

		{Field: detect.FieldName, Kind: detect.KindText, Selector: ".poly-component__title"},
		{Field: detect.FieldName, Kind: detect.KindText, Selector: ".ui-search-item__title a"},
		{Field: detect.FieldName, Kind: detect.KindText, Selector: ".ui-search-item__title"},

		{Field: detect.FieldCurrentPrice, Kind: detect.KindText,
			Selector: ".poly-price__current .andes-money-amount__fraction"},
		{Field: detect.FieldCurrentPrice, Kind: detect.KindText,
			Selector: ".ui-search-price__second-line .andes-money-amount__fraction"},
		{Field: detect.FieldCurrentPrice, Kind: detect.KindText,
			Selector: ".andes-money-amount:not(.andes-money-amount--previous) .andes-money-amount__fraction"},
		{Field: detect.FieldCurrentPrice, Kind: detect.KindPrice, Selector: "current"},

		{Field: detect.FieldOriginalPrice, Kind: detect.KindText,
			Selector: "s.andes-money-amount--previous .andes-money-amount__fraction"},
		{Field: detect.FieldOriginalPrice, Kind: detect.KindText,
			Selector: ".ui-search-price__original-value .andes-money-amount__fraction"},
		{Field: detect.FieldOriginalPrice, Kind: detect.KindText,
			Selector: "s .andes-money-amount__fraction"},
		{Field: detect.FieldOriginalPrice, Kind: detect.KindPrice, Selector: "struck"},

		{Field: detect.FieldURL, Kind: detect.KindAttr,
			Selector: "a.poly-component__title", Attr: "href"},
		{Field: detect.FieldURL, Kind: detect.KindAttr,
			Selector: "a.ui-search-link", Attr: "href"},
		{Field: detect.FieldURL, Kind: detect.KindAttr, Selector: "a[href]", Attr: "href"},

		{Field: detect.FieldImageURL, Kind: detect.KindAttr,
			Selector: "img[data-src]", Attr: "data-src"},
		{Field: detect.FieldImageURL, Kind: detect.KindAttr,
			Selector: "img[src]", Attr: "src"},
	}
}
