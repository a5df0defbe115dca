package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsDimensionText(t *testing.T) {
	cases := map[string]bool{
		`0.5"`:      true,
		"25mm":      true,
		"1/4":       true,
		"Ø5":        true,
		"M8":        true,
		"6-32":      true,
		"45°":       true,
		"Flange":    false,
		"":          false,
	}
	for in, want := range cases {
		assert.Equal(t, want, IsDimensionText(in), "input=%q", in)
	}
}

func TestIsThreadCallout(t *testing.T) {
	assert.True(t, IsThreadCallout("1/4-20"))
	assert.True(t, IsThreadCallout("#8-32"))
	assert.True(t, IsThreadCallout("M8x1.25"))
	assert.True(t, IsThreadCallout("1/4 NPT"))
	assert.True(t, IsThreadCallout("UNC"))
	assert.False(t, IsThreadCallout("0.250\""))
}

func TestIsTolerance(t *testing.T) {
	assert.True(t, IsTolerance("+0.005"))
	assert.True(t, IsTolerance("-.003"))
	assert.True(t, IsTolerance("±0.01"))
	assert.False(t, IsTolerance("0.250\""))
}

func TestIsModifier(t *testing.T) {
	assert.True(t, IsModifier("4X"))
	assert.True(t, IsModifier("(4X)"))
	assert.True(t, IsModifier("TYP"))
	assert.True(t, IsModifier("REF."))
	assert.True(t, IsModifier("3 PLACES"))
	assert.False(t, IsModifier("0.250\""))
}

func TestExtractNumeric(t *testing.T) {
	v, ok := ExtractNumeric("0.250\"")
	assert.True(t, ok)
	assert.InDelta(t, 0.250, v, 0.0001)

	v, ok = ExtractNumeric("3/4")
	assert.True(t, ok)
	assert.InDelta(t, 0.75, v, 0.0001)

	v, ok = ExtractNumeric(`3 1/4"`)
	assert.True(t, ok)
	assert.InDelta(t, 3.25, v, 0.0001)

	_, ok = ExtractNumeric("TYP")
	assert.False(t, ok)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		`Ø0.500" ±0.005`,
		"M8 x 1.25",
		"3 1/4\"",
		"",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		assert.Equal(t, once, twice, "normalize not idempotent for %q", in)
	}
}

func TestNormalizeUnifiesDiameterGlyphs(t *testing.T) {
	assert.Equal(t, Normalize("Ø0.500"), Normalize("⌀0.500"))
}
