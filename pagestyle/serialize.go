package pagestyle

import (
	"bytes"
	"encoding/json"
)

const (
	// MaxOutputChars bounds the serialized summary. It counts runes, so a
	// character outside the BMP counts once rather than as two UTF-16 units.
	MaxOutputChars = 7000
	// NoStylesMessage is returned when no selector recorded any value.
	NoStylesMessage = "No styles found for the given selectors."
)

// MarshalJSON encodes {selector: {property: [[value], ...]}} keeping the
// ranked order of every level.
func (r RankedStyles) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	str := func(s string) error {
		if err := enc.Encode(s); err != nil {
			return err
		}
		buf.Truncate(buf.Len() - 1) // Encode appends '\n'
		return nil
	}

	buf.WriteByte('{')
	for i, sel := range r.Selectors {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := str(sel.Selector); err != nil {
			return nil, err
		}
		buf.WriteString(":{")
		for j, prop := range sel.Properties {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := str(prop.Property); err != nil {
				return nil, err
			}
			buf.WriteString(":[")
			for k, v := range prop.Values {
				if k > 0 {
					buf.WriteByte(',')
				}
				buf.WriteByte('[')
				if err := str(v); err != nil {
					return nil, err
				}
				buf.WriteByte(']')
			}
			buf.WriteByte(']')
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Serialize renders the ranked styles as compact JSON cut to the first
// MaxOutputChars characters, or NoStylesMessage when there is nothing to
// report. The cut does not preserve well-formedness.
func Serialize(r RankedStyles) (string, error) {
	if r.Empty() {
		return NoStylesMessage, nil
	}
	b, err := r.MarshalJSON()
	if err != nil {
		return "", err
	}
	return truncateChars(string(b), MaxOutputChars), nil
}

// Indent returns a pretty-printed copy for diagnostics.
func (r RankedStyles) Indent() string {
	b, err := r.MarshalJSON()
	if err != nil {
		return ""
	}
	var out bytes.Buffer
	if err := json.Indent(&out, b, "", "  "); err != nil {
		return string(b)
	}
	return out.String()
}

func truncateChars(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
