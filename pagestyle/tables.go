package pagestyle

import (
	"regexp"
	"slices"
)

// Selectors is the fixed list of element selectors sampled on every call, in
// sampling order.
var Selectors = []string{
	"button", "input", "a", "p", "span", "img",
	"h1", "h2", "h3", "h4", "h5", "h6",
	"textarea", "select", "option", "label", "form",
	"table", "tr", "td", "th",
	"ul", "ol", "li",
	"nav", "header", "footer", "section", "article", "main", "aside", "div",
}

// RelevantProperties is the fixed set of style properties that are sampled.
// Its order is the enumeration order used when walking an element's style.
var RelevantProperties = []string{
	"color",
	"background", "background-color", "background-image",
	"font-family", "font-size",
	"margin", "margin-block", "margin-inline",
	"padding", "padding-block", "padding-inline",
	"box-sizing",
	"width", "height", "min-width", "min-height", "max-width", "max-height",
	"border-radius",
	"border", "border-width", "border-top-width", "border-bottom-width", "border-left-width", "border-right-width",
	"box-shadow",
}

// ignorePatterns drop an observation outright when the raw value matches.
var ignorePatterns = []*regexp.Regexp{
	regexp.MustCompile(`url\(data:image`),
	regexp.MustCompile(`url\(http`),
}

func isRelevantProperty(prop string) bool {
	return slices.Contains(RelevantProperties, prop)
}

func isIgnoredValue(v string) bool {
	for _, re := range ignorePatterns {
		if re.MatchString(v) {
			return true
		}
	}
	return false
}
