package pagestyle

import "slices"

// styleKey is the composite (selector, property, value) key of a tally.
type styleKey struct {
	Selector string
	Property string
	Value    string
}

// Tally is one counted value.
type Tally struct {
	styleKey
	Count int
}

// FrequencyTable counts samples per (selector, property, value). Records keep
// the order in which each key was first seen.
type FrequencyTable struct {
	index   map[styleKey]int
	records []Tally
}

func NewFrequencyTable() *FrequencyTable {
	return &FrequencyTable{index: map[styleKey]int{}}
}

// Add increments the count of value for (selector, property). Properties
// outside RelevantProperties are not recorded.
func (t *FrequencyTable) Add(selector, property, value string) {
	if !isRelevantProperty(property) {
		return
	}
	k := styleKey{Selector: selector, Property: property, Value: value}
	if i, ok := t.index[k]; ok {
		t.records[i].Count++
		return
	}
	t.index[k] = len(t.records)
	t.records = append(t.records, Tally{styleKey: k, Count: 1})
}

// AddSample is Add for a StyleSample.
func (t *FrequencyTable) AddSample(s StyleSample) {
	t.Add(s.Selector, s.Property, s.Value)
}

// Count returns the tally for a key, zero when it was never added.
func (t *FrequencyTable) Count(selector, property, value string) int {
	if i, ok := t.index[styleKey{Selector: selector, Property: property, Value: value}]; ok {
		return t.records[i].Count
	}
	return 0
}

// Len reports the number of distinct keys.
func (t *FrequencyTable) Len() int { return len(t.records) }

// RankedProperty lists one property's values, most frequent first.
type RankedProperty struct {
	Property string
	Values   []string
}

// RankedSelector groups the ranked properties of one selector.
type RankedSelector struct {
	Selector   string
	Properties []RankedProperty
}

// RankedStyles is the ranked view of a FrequencyTable.
type RankedStyles struct {
	Selectors []RankedSelector
}

// Empty reports whether no selector recorded any value.
func (r RankedStyles) Empty() bool { return len(r.Selectors) == 0 }

// Rank orders the values of every (selector, property) by descending count.
// Selectors and properties appear in first-insertion order, and values with
// equal counts keep their first-insertion order.
func (t *FrequencyTable) Rank() RankedStyles {
	type group struct {
		sel, prop string
		tallies   []Tally
	}
	var groups []*group
	byKey := map[[2]string]*group{}
	for _, rec := range t.records {
		gk := [2]string{rec.Selector, rec.Property}
		g, ok := byKey[gk]
		if !ok {
			g = &group{sel: rec.Selector, prop: rec.Property}
			byKey[gk] = g
			groups = append(groups, g)
		}
		g.tallies = append(g.tallies, rec)
	}

	var out RankedStyles
	selIndex := map[string]int{}
	for _, g := range groups {
		slices.SortStableFunc(g.tallies, func(a, b Tally) int { return b.Count - a.Count })
		values := make([]string, len(g.tallies))
		for i, tl := range g.tallies {
			values[i] = tl.Value
		}
		si, ok := selIndex[g.sel]
		if !ok {
			si = len(out.Selectors)
			selIndex[g.sel] = si
			out.Selectors = append(out.Selectors, RankedSelector{Selector: g.sel})
		}
		out.Selectors[si].Properties = append(out.Selectors[si].Properties, RankedProperty{Property: g.prop, Values: values})
	}
	return out
}
