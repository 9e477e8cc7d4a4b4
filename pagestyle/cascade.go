package pagestyle

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/andybalholm/cascadia"
	cssast "github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
)

// ComputedStyle is the resolved style of one element: property name to
// value, custom properties included.
type ComputedStyle map[string]string

type propState struct {
	val       string
	spec      cascadia.Specificity
	order     int
	important bool
}

type cssDeclaration struct {
	property  string
	value     string
	important bool
}

type cssRule struct {
	selector     cascadia.Sel
	specificity  cascadia.Specificity
	declarations []cssDeclaration
	order        int
}

// Stylesheet is the ordered set of author rules that apply to a document.
type Stylesheet struct {
	rules []cssRule
}

func (ss *Stylesheet) append(rules []cssRule) {
	for _, r := range rules {
		r.order = len(ss.rules)
		ss.rules = append(ss.rules, r)
	}
}

// Len reports the number of selector/declaration-block pairs.
func (ss *Stylesheet) Len() int {
	if ss == nil {
		return 0
	}
	return len(ss.rules)
}

// Viewport drives @media evaluation.
type Viewport struct {
	Width  int
	Height int
}

const maxImportDepth = 16

// textFetcher loads an external stylesheet.
type textFetcher func(ctx context.Context, absURL string) ([]byte, error)

type cssParseContext struct {
	ctx      context.Context
	baseURL  string
	viewport Viewport
	fetch    textFetcher
	depth    int
	visited  map[string]struct{}
	budget   *atomic.Int32
	logger   *slog.Logger
}

func (c *cssParseContext) child(newBase string) *cssParseContext {
	next := *c
	next.baseURL = newBase
	next.depth = c.depth + 1
	return &next
}

func (c *cssParseContext) takeBudget() bool {
	if c.budget == nil {
		return true
	}
	return c.budget.Add(-1) >= 0
}

func parseCSSText(txt string, pc *cssParseContext) []cssRule {
	trimmed := strings.TrimSpace(txt)
	if trimmed == "" || pc.depth >= maxImportDepth {
		return nil
	}
	sheet, err := parser.Parse(trimmed)
	if err != nil {
		pc.logger.Debug("css parse failed", "base", pc.baseURL, "err", err)
		return nil
	}

	var rules []cssRule
	var walk func([]*cssast.Rule)
	walk = func(list []*cssast.Rule) {
		for _, rule := range list {
			if rule == nil {
				continue
			}
			switch rule.Kind {
			case cssast.AtRule:
				switch strings.ToLower(strings.TrimSpace(rule.Name)) {
				case "@media":
					if mediaRuleActive(rule.Prelude, pc.viewport) {
						walk(rule.Rules)
					}
				case "@supports", "@layer", "@document", "@container":
					walk(rule.Rules)
				case "@import":
					rules = append(rules, pc.importRules(rule.Prelude)...)
				default:
					// @font-face, @keyframes, @page carry no element rules
				}
			case cssast.QualifiedRule:
				decls := convertDeclarations(rule.Declarations)
				if len(decls) == 0 || len(rule.Selectors) == 0 {
					continue
				}
				group, err := cascadia.ParseGroup(strings.Join(rule.Selectors, ","))
				if err != nil {
					pc.logger.Debug("css selector rejected", "selector", strings.Join(rule.Selectors, ","), "err", err)
					continue
				}
				for _, sel := range group {
					if sel == nil || sel.PseudoElement() != "" {
						continue
					}
					rules = append(rules, cssRule{selector: sel, specificity: sel.Specificity(), declarations: decls})
				}
			}
		}
	}
	walk(sheet.Rules)
	return rules
}

func (pc *cssParseContext) importRules(prelude string) []cssRule {
	importURL, media := extractImportTarget(prelude)
	if importURL == "" || pc.fetch == nil {
		return nil
	}
	if media != "" && !mediaRuleActive(media, pc.viewport) {
		return nil
	}
	abs := resolveAbsURL(pc.baseURL, importURL)
	if abs == "" {
		return nil
	}
	if _, seen := pc.visited[abs]; seen {
		return nil
	}
	pc.visited[abs] = struct{}{}
	if !pc.takeBudget() {
		return nil
	}
	b, err := pc.fetch(pc.ctx, abs)
	if err != nil {
		pc.logger.Warn("stylesheet import failed", "url", abs, "err", err)
		return nil
	}
	return parseCSSText(string(b), pc.child(abs))
}

func convertDeclarations(list []*cssast.Declaration) []cssDeclaration {
	if len(list) == 0 {
		return nil
	}
	out := make([]cssDeclaration, 0, len(list))
	for _, decl := range list {
		if decl == nil {
			continue
		}
		prop := normalizePropertyName(decl.Property)
		if prop == "" {
			continue
		}
		val := strings.TrimSpace(decl.Value)
		if val == "" {
			continue
		}
		out = append(out, cssDeclaration{property: prop, value: val, important: decl.Important})
	}
	return out
}

// normalizePropertyName lowercases standard properties; custom property
// names are case-sensitive and kept verbatim.
func normalizePropertyName(p string) string {
	p = strings.TrimSpace(p)
	if strings.HasPrefix(p, "--") {
		return p
	}
	return strings.ToLower(p)
}

func extractImportTarget(prelude string) (string, string) {
	s := strings.TrimSpace(prelude)
	if s == "" {
		return "", ""
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "url(") {
		end := strings.Index(s, ")")
		if end == -1 {
			return "", ""
		}
		target := trimCSSString(s[4:end])
		return target, strings.TrimSpace(s[end+1:])
	}
	if (s[0] == '"' || s[0] == '\'') && len(s) > 1 {
		if idx := strings.IndexByte(s[1:], s[0]); idx != -1 {
			return s[1 : idx+1], strings.TrimSpace(s[idx+2:])
		}
	}
	fields := strings.Fields(s)
	target := trimCSSString(fields[0])
	return target, strings.TrimSpace(strings.TrimPrefix(s, fields[0]))
}

func trimCSSString(v string) string {
	vv := strings.TrimSpace(v)
	if len(vv) >= 2 {
		if (vv[0] == '"' && vv[len(vv)-1] == '"') || (vv[0] == '\'' && vv[len(vv)-1] == '\'') {
			return vv[1 : len(vv)-1]
		}
	}
	return vv
}

// mediaRuleActive evaluates a comma separated media query list against the
// viewport. Unknown features are assumed to match.
func mediaRuleActive(prelude string, vp Viewport) bool {
	if strings.TrimSpace(prelude) == "" {
		return true
	}
	for _, raw := range strings.Split(prelude, ",") {
		query := strings.ToLower(strings.TrimSpace(raw))
		if query == "" {
			continue
		}
		negate := false
		if rest, ok := strings.CutPrefix(query, "not "); ok {
			negate = true
			query = strings.TrimSpace(rest)
		}
		query = strings.TrimSpace(strings.TrimPrefix(query, "only "))

		mediaType := ""
		rest := query
		if !strings.HasPrefix(query, "(") {
			fields := strings.Fields(query)
			mediaType = fields[0]
			rest = strings.TrimSpace(strings.TrimPrefix(query, mediaType))
			rest = strings.TrimSpace(strings.TrimPrefix(rest, "and"))
		}

		match := false
		switch mediaType {
		case "", "all", "screen":
			match = evaluateMediaFeatures(rest, vp)
		}
		if match != negate {
			return true
		}
	}
	return false
}

func evaluateMediaFeatures(expr string, vp Viewport) bool {
	width, height := vp.Width, vp.Height
	if width <= 0 {
		width = 1024
	}
	if height <= 0 {
		height = 768
	}
	for _, clause := range strings.Split(expr, " and ") {
		c := strings.TrimSpace(clause)
		if c == "" {
			continue
		}
		if strings.HasPrefix(c, "(") && strings.HasSuffix(c, ")") {
			c = strings.TrimSpace(c[1 : len(c)-1])
		}
		feature, value, _ := strings.Cut(c, ":")
		feature = strings.TrimSpace(feature)
		value = strings.TrimSpace(value)

		switch feature {
		case "orientation":
			orientation := "portrait"
			if width > height {
				orientation = "landscape"
			}
			if value != "" && value != orientation {
				return false
			}
		case "min-width":
			if px, ok := cssLengthToPx(value, width); ok && width < px {
				return false
			}
		case "max-width":
			if px, ok := cssLengthToPx(value, width); ok && width > px {
				return false
			}
		case "min-height":
			if px, ok := cssLengthToPx(value, height); ok && height < px {
				return false
			}
		case "max-height":
			if px, ok := cssLengthToPx(value, height); ok && height > px {
				return false
			}
		case "prefers-color-scheme":
			if value != "" && value != "light" {
				return false
			}
		case "prefers-reduced-motion":
			if value != "" && value != "no-preference" {
				return false
			}
		}
	}
	return true
}

func cssLengthToPx(val string, base int) (int, bool) {
	v := strings.ToLower(strings.TrimSpace(val))
	if v == "" {
		return 0, false
	}
	num := func(s string) (float64, bool) {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	switch {
	case strings.HasSuffix(v, "px"):
		if f, ok := num(v[:len(v)-2]); ok {
			return int(f + 0.5), true
		}
	case strings.HasSuffix(v, "rem"):
		if f, ok := num(v[:len(v)-3]); ok {
			return int(f*16.0 + 0.5), true
		}
	case strings.HasSuffix(v, "em"):
		if f, ok := num(v[:len(v)-2]); ok {
			return int(f*16.0 + 0.5), true
		}
	case strings.HasSuffix(v, "%"):
		if f, ok := num(v[:len(v)-1]); ok && base > 0 {
			return int(float64(base) * f / 100.0), true
		}
	default:
		if f, ok := num(v); ok {
			return int(f + 0.5), true
		}
	}
	return 0, false
}

// inheritedProperties inherit from the parent element when the element has
// no declared value of its own. Custom properties always inherit.
var inheritedProperties = []string{"color", "font-family", "font-size"}

// styleResolver computes and memoizes resolved styles for one document.
type styleResolver struct {
	sheet *Stylesheet
	hints map[*html.Node][]cssDeclaration
	cache map[*html.Node]ComputedStyle
}

func newStyleResolver(ss *Stylesheet, hints map[*html.Node][]cssDeclaration) *styleResolver {
	if ss == nil {
		ss = &Stylesheet{}
	}
	return &styleResolver{sheet: ss, hints: hints, cache: map[*html.Node]ComputedStyle{}}
}

func (r *styleResolver) computed(n *html.Node) ComputedStyle {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	if cs, ok := r.cache[n]; ok {
		return cs
	}
	var parent ComputedStyle
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			parent = r.computed(p)
			break
		}
	}
	cs := r.cascade(n)
	inherit(cs, parent)
	r.cache[n] = cs
	return cs
}

func inherit(own, parent ComputedStyle) {
	for k, v := range own {
		if strings.EqualFold(v, "inherit") {
			if pv, ok := parent[k]; ok {
				own[k] = pv
			} else {
				delete(own, k)
			}
		}
	}
	for _, k := range inheritedProperties {
		if _, ok := own[k]; ok {
			continue
		}
		if pv, ok := parent[k]; ok {
			own[k] = pv
		}
	}
	for k, v := range parent {
		if !strings.HasPrefix(k, "--") {
			continue
		}
		if _, ok := own[k]; !ok {
			own[k] = v
		}
	}
}

var (
	hintSpecificity   = cascadia.Specificity{0, 0, 0}
	inlineSpecificity = cascadia.Specificity{1 << 12, 0, 0}
)

const (
	hintOrder   = -(1 << 30)
	inlineOrder = 1 << 30
)

func (r *styleResolver) cascade(n *html.Node) ComputedStyle {
	props := map[string]propState{}

	for i, decl := range r.hints[n] {
		applyDeclaration(props, decl, hintSpecificity, hintOrder+i)
	}
	for _, rule := range r.sheet.rules {
		if rule.selector == nil || !rule.selector.Match(n) {
			continue
		}
		for _, decl := range rule.declarations {
			applyDeclaration(props, decl, rule.specificity, rule.order)
		}
	}
	if inline := strings.TrimSpace(getAttr(n, "style")); inline != "" {
		for i, decl := range parseInlineDeclarations(inline) {
			applyDeclaration(props, decl, inlineSpecificity, inlineOrder+i)
		}
	}

	out := make(ComputedStyle, len(props))
	for k, st := range props {
		out[k] = st.val
	}
	return out
}

// parseInlineDeclarations parses a style attribute. douceur only closes a
// declaration at ';' so the last one needs a terminator.
func parseInlineDeclarations(inline string) []cssDeclaration {
	text := strings.TrimSpace(inline)
	if text == "" {
		return nil
	}
	if !strings.HasSuffix(text, ";") {
		text += ";"
	}
	if decls, err := parser.ParseDeclarations(text); err == nil && !hasEmptyValue(decls) {
		return convertDeclarations(decls)
	}
	return splitInlineDeclarations(text)
}

func hasEmptyValue(decls []*cssast.Declaration) bool {
	for _, d := range decls {
		if d != nil && strings.TrimSpace(d.Value) == "" {
			return true
		}
	}
	return false
}

func splitInlineDeclarations(inline string) []cssDeclaration {
	var out []cssDeclaration
	for _, part := range strings.Split(inline, ";") {
		k, v, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		value := strings.TrimSpace(v)
		important := false
		if strings.HasSuffix(strings.ToLower(value), "!important") {
			important = true
			value = strings.TrimSpace(value[:len(value)-len("!important")])
		}
		prop := normalizePropertyName(k)
		if prop == "" || value == "" {
			continue
		}
		out = append(out, cssDeclaration{property: prop, value: value, important: important})
	}
	return out
}

func applyDeclaration(store map[string]propState, decl cssDeclaration, spec cascadia.Specificity, order int) {
	for _, d := range expandShorthand(decl) {
		applyOne(store, d, spec, order)
	}
}

func applyOne(store map[string]propState, decl cssDeclaration, spec cascadia.Specificity, order int) {
	entry := propState{val: decl.value, spec: spec, order: order, important: decl.important}
	prev, ok := store[decl.property]
	if !ok {
		store[decl.property] = entry
		return
	}
	if prev.important && !decl.important {
		return
	}
	if decl.important && !prev.important {
		store[decl.property] = entry
		return
	}
	if prev.spec.Less(spec) {
		store[decl.property] = entry
		return
	}
	if spec.Less(prev.spec) {
		return
	}
	if order >= prev.order {
		store[decl.property] = entry
	}
}

var borderSides = []string{"border-top-width", "border-right-width", "border-bottom-width", "border-left-width"}

// expandShorthand returns decl plus the longhands it sets that the sampler
// cares about.
func expandShorthand(decl cssDeclaration) []cssDeclaration {
	out := []cssDeclaration{decl}
	with := func(prop, val string) {
		out = append(out, cssDeclaration{property: prop, value: val, important: decl.important})
	}
	switch decl.property {
	case "background":
		if col := extractColorToken(decl.value); col != "" {
			with("background-color", col)
		}
		if img := extractImageToken(decl.value); img != "" {
			with("background-image", img)
		}
	case "border":
		if w := borderWidthToken(decl.value); w != "" {
			with("border-width", w)
			for _, side := range borderSides {
				with(side, w)
			}
		}
	case "border-width":
		parts := strings.Fields(decl.value)
		if len(parts) == 0 || len(parts) > 4 {
			break
		}
		// top right bottom left, CSS 1-to-4 value expansion
		idx := [4][4]int{{0, 0, 0, 0}, {0, 1, 0, 1}, {0, 1, 2, 1}, {0, 1, 2, 3}}[len(parts)-1]
		for i, side := range borderSides {
			with(side, parts[idx[i]])
		}
	}
	return out
}

func borderWidthToken(v string) string {
	for _, part := range strings.Fields(stripFunctions(v, "rgb", "rgba", "hsl", "hsla", "var")) {
		switch strings.ToLower(part) {
		case "thin", "medium", "thick":
			return part
		}
		if part[0] >= '0' && part[0] <= '9' || part[0] == '.' {
			return part
		}
	}
	return ""
}

func getAttr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}
