package pagestyle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrequencyTableCounts(t *testing.T) {
	t.Parallel()
	table := NewFrequencyTable()
	for i := 0; i < 4; i++ {
		table.Add("button", "color", "rgb(255,0,0)")
	}
	table.Add("button", "color", "blue")
	table.Add("p", "color", "rgb(255,0,0)")

	require.Equal(t, 4, table.Count("button", "color", "rgb(255,0,0)"))
	require.Equal(t, 1, table.Count("button", "color", "blue"))
	require.Equal(t, 1, table.Count("p", "color", "rgb(255,0,0)"))
	require.Zero(t, table.Count("p", "color", "blue"))
	require.Equal(t, 3, table.Len())

	table.Add("p", "--brand", "rgb(1,2,3)")
	require.Zero(t, table.Count("p", "--brand", "rgb(1,2,3)"))
	require.Equal(t, 3, table.Len())
}

func TestRankStableTies(t *testing.T) {
	t.Parallel()
	table := NewFrequencyTable()
	add := func(v string, n int) {
		for i := 0; i < n; i++ {
			table.Add("div", "margin", v)
		}
	}
	// first-seen order is A, B, C
	table.Add("div", "margin", "A")
	table.Add("div", "margin", "B")
	table.Add("div", "margin", "C")
	add("A", 2)
	add("B", 4)
	add("C", 4)

	ranked := table.Rank()
	require.Len(t, ranked.Selectors, 1)
	require.Equal(t, []RankedProperty{{Property: "margin", Values: []string{"B", "C", "A"}}}, ranked.Selectors[0].Properties)
}

func TestRankKeepsInsertionOrder(t *testing.T) {
	t.Parallel()
	table := NewFrequencyTable()
	table.Add("p", "font-size", "14px")
	table.Add("button", "color", "red")
	table.Add("p", "color", "black")
	table.Add("button", "color", "red")

	ranked := table.Rank()
	require.Equal(t, RankedStyles{Selectors: []RankedSelector{
		{Selector: "p", Properties: []RankedProperty{
			{Property: "font-size", Values: []string{"14px"}},
			{Property: "color", Values: []string{"black"}},
		}},
		{Selector: "button", Properties: []RankedProperty{
			{Property: "color", Values: []string{"red"}},
		}},
	}}, ranked)
}

func TestRankEmpty(t *testing.T) {
	t.Parallel()
	require.True(t, NewFrequencyTable().Rank().Empty())
}
