package pagestyle

import "fmt"

// StyleSample is one counted observation.
type StyleSample struct {
	Selector string
	Property string
	Value    string
}

// Sample walks Selectors in order and, for each matching element, the
// relevant properties in RelevantProperties order. Every kept value is
// emitted once per element.
func Sample(doc Document) ([]StyleSample, error) {
	var out []StyleSample
	for _, sel := range Selectors {
		styles, err := doc.Styles(sel)
		if err != nil {
			return nil, fmt.Errorf("sample %s: %w", sel, err)
		}
		for _, style := range styles {
			for _, prop := range RelevantProperties {
				raw := style[prop]
				if raw == "" {
					continue
				}
				if v, ok := Resolve(prop, raw, style); ok {
					out = append(out, StyleSample{Selector: sel, Property: prop, Value: v})
				}
			}
		}
	}
	return out, nil
}
