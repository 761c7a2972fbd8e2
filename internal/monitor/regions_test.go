package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/unicode/norm"
)

func TestRegionRewrites_Apply(t *testing.T) {
	rr := DefaultRegionRewrites()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"kyiv city", "Київ", "м. Київ"},
		{"kyiv oblast untouched", "Київська", "Київська"},
		{"already canonical", "м. Київ", "м. Київ"},
		{"lowercase poltava prefix", "полтавська", "Полтавська"},
		{"poltava prefix keeps suffix", "полтавська область", "Полтавська область"},
		{"other region", "Одеська", "Одеська"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rr.Apply(tt.in))
		})
	}
}

func TestRegionRewrites_DecomposedInput(t *testing.T) {
	decomposed := norm.NFD.String("Київ")
	assert.NotEqual(t, "Київ", decomposed)
	assert.Equal(t, "м. Київ", DefaultRegionRewrites().Apply(decomposed))
}

func TestRegionRewrites_FirstRuleWins(t *testing.T) {
	rr := RegionRewrites{
		{From: "A", To: "first"},
		{From: "A", To: "second"},
	}
	assert.Equal(t, "first", rr.Apply("A"))
	assert.Equal(t, "B", RegionRewrites(nil).Apply("B"))
}
