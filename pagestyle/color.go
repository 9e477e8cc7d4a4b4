package pagestyle

import (
	"fmt"
	"strings"
	"unicode"
)

type rgbColor struct {
	R uint8
	G uint8
	B uint8
}

// String renders the color the way system colors are reported: rgb(r,g,b)
// without spaces.
func (c rgbColor) String() string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

// systemColors maps legacy system color keywords to the classic Windows XP
// palette. Lookup is exact and case-sensitive.
var systemColors = map[string]rgbColor{
	"ActiveBorder":        {212, 208, 200},
	"ActiveCaption":       {10, 36, 106},
	"AppWorkspace":        {128, 128, 128},
	"Background":          {58, 110, 165},
	"ButtonFace":          {236, 233, 216},
	"ButtonHighlight":     {255, 255, 255},
	"ButtonShadow":        {172, 168, 153},
	"ButtonText":          {0, 0, 0},
	"CaptionText":         {255, 255, 255},
	"GrayText":            {172, 168, 153},
	"Highlight":           {10, 36, 106},
	"HighlightText":       {255, 255, 255},
	"InactiveBorder":      {212, 208, 200},
	"InactiveCaption":     {122, 150, 223},
	"InactiveCaptionText": {216, 228, 248},
	"InfoBackground":      {255, 255, 225},
	"InfoText":            {0, 0, 0},
	"Menu":                {255, 255, 255},
	"MenuText":            {0, 0, 0},
	"Scrollbar":           {212, 208, 200},
	"ThreeDDarkShadow":    {113, 111, 100},
	"ThreeDFace":          {236, 233, 216},
	"ThreeDHighlight":     {255, 255, 255},
	"ThreeDLightShadow":   {241, 239, 226},
	"ThreeDShadow":        {172, 168, 153},
	"Window":              {255, 255, 255},
	"WindowFrame":         {0, 0, 0},
	"WindowText":          {0, 0, 0},
}

func lookupSystemColor(v string) (string, bool) {
	col, ok := systemColors[v]
	if !ok {
		return "", false
	}
	return col.String(), true
}

// namedColors is the keyword subset recognised when splitting a background
// shorthand into longhands.
var namedColors = map[string]struct{}{
	"transparent": {}, "currentcolor": {},
	"black": {}, "silver": {}, "gray": {}, "grey": {}, "white": {}, "maroon": {},
	"red": {}, "purple": {}, "fuchsia": {}, "green": {}, "lime": {}, "olive": {},
	"yellow": {}, "navy": {}, "blue": {}, "teal": {}, "aqua": {}, "orange": {},
}

var colorFunctions = []string{"rgba(", "rgb(", "hsla(", "hsl(", "hwb(", "lab(", "lch(", "oklab(", "oklch(", "color("}

// extractColorToken returns the first color token of a shorthand value, as
// written. Function arguments of url() are ignored.
func extractColorToken(input string) string {
	s := strings.TrimSpace(input)
	if s == "" {
		return ""
	}
	cleaned := stripFunctions(s, "url", "linear-gradient", "radial-gradient", "conic-gradient",
		"repeating-linear-gradient", "repeating-radial-gradient", "image-set", "var")
	lower := asciiLower(cleaned)
	for _, fn := range colorFunctions {
		idx := strings.Index(lower, fn)
		if idx == -1 {
			continue
		}
		if idx > 0 && isIdentByte(lower[idx-1]) {
			continue
		}
		if end := matchParen(cleaned, idx+len(fn)-1); end != -1 {
			return cleaned[idx : end+1]
		}
	}
	parts := strings.FieldsFunc(cleaned, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == '/'
	})
	for _, part := range parts {
		if strings.HasPrefix(part, "#") && isHexColor(part[1:]) {
			return part
		}
		if _, ok := namedColors[strings.ToLower(part)]; ok {
			return part
		}
		if _, ok := systemColors[part]; ok {
			return part
		}
	}
	return ""
}

// extractImageToken returns the first url() or gradient function of a
// background shorthand, or "none" when the shorthand names it.
func extractImageToken(input string) string {
	s := strings.TrimSpace(input)
	lower := asciiLower(s)
	best := -1
	for _, fn := range []string{"url(", "linear-gradient(", "radial-gradient(", "conic-gradient(",
		"repeating-linear-gradient(", "repeating-radial-gradient(", "image-set("} {
		idx := strings.Index(lower, fn)
		for idx > 0 && isIdentByte(lower[idx-1]) {
			next := strings.Index(lower[idx+1:], fn)
			if next == -1 {
				idx = -1
				break
			}
			idx += next + 1
		}
		if idx != -1 && (best == -1 || idx < best) {
			best = idx
		}
	}
	if best != -1 {
		open := strings.IndexByte(s[best:], '(') + best
		if end := matchParen(s, open); end != -1 {
			return s[best : end+1]
		}
		return ""
	}
	for _, f := range strings.Fields(lower) {
		if f == "none" {
			return "none"
		}
	}
	return ""
}

func isHexColor(h string) bool {
	switch len(h) {
	case 3, 4, 6, 8:
	default:
		return false
	}
	for i := 0; i < len(h); i++ {
		c := h[i]
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

func isIdentByte(c byte) bool {
	return c == '-' || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// matchParen returns the index of the parenthesis closing the one at open.
func matchParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func stripFunctions(s string, names ...string) string {
	if len(names) == 0 || s == "" {
		return s
	}
	lower := asciiLower(s)
	var b strings.Builder
	i := 0
	for i < len(s) {
		matched := false
		for _, name := range names {
			keyword := name + "("
			if !strings.HasPrefix(lower[i:], keyword) {
				continue
			}
			if i > 0 && isIdentByte(lower[i-1]) {
				continue
			}
			matched = true
			end := matchParen(s, i+len(name))
			if end == -1 {
				i = len(s)
			} else {
				i = end + 1
			}
			b.WriteByte(' ')
			break
		}
		if matched {
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// asciiLower lowercases A-Z only, so byte offsets found in the result index
// the original string.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
