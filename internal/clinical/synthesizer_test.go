package clinical

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSynthesize_DrawsFromCatalog(t *testing.T) {
	s := NewSynthesizer(rand.NewPCG(3, 9))

	for i := 0; i < 200; i++ {
		d := s.Synthesize()
		assert.True(t, slices.Contains(Locations, d.Location), d.Location)
		assert.True(t, slices.Contains(Colorations, d.Coloration), d.Coloration)
		assert.True(t, slices.Contains(Surfaces, d.Surface), d.Surface)
		assert.True(t, slices.Contains(Sizes, d.Size), d.Size)
		assert.Equal(t, "T1", d.Stage)
	}
}

func TestSynthesize_SeededIsDeterministic(t *testing.T) {
	a := NewSynthesizer(rand.NewPCG(42, 1))
	b := NewSynthesizer(rand.NewPCG(42, 1))

	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Synthesize(), b.Synthesize())
	}
}

func TestCatalogSizes(t *testing.T) {
	assert.Len(t, Locations, 5)
	assert.Len(t, Colorations, 4)
	assert.Len(t, Surfaces, 4)
	assert.Len(t, Sizes, 10)
	assert.NotEmpty(t, Details{}.Disclaimer())
}
