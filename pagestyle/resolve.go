package pagestyle

import "strings"

// Resolve turns a raw resolved value into the value that gets counted.
// It reports false when the observation must be dropped. A value of the
// exact shape var(--name) is replaced by that custom property of the same
// element, one hop only and without fallback support; a substitute that is
// itself noise drops the observation too. Legacy system color keywords are
// then mapped to rgb literals.
func Resolve(property, raw string, style ComputedStyle) (string, bool) {
	if isIgnoredValue(raw) {
		return "", false
	}
	value := raw
	if name, ok := customPropertyRef(raw); ok {
		if sub := strings.TrimSpace(style[name]); sub != "" {
			if isIgnoredValue(sub) {
				return "", false
			}
			value = sub
		}
	}
	if rgb, ok := lookupSystemColor(value); ok {
		value = rgb
	}
	return value, true
}

// customPropertyRef extracts name from var(name). References with a fallback
// argument or nested functions are not resolved.
func customPropertyRef(v string) (string, bool) {
	v = strings.TrimSpace(v)
	inner, ok := strings.CutPrefix(v, "var(")
	if !ok {
		return "", false
	}
	inner, ok = strings.CutSuffix(inner, ")")
	if !ok || strings.ContainsAny(inner, ",()") {
		return "", false
	}
	name := strings.TrimSpace(inner)
	return name, name != ""
}
