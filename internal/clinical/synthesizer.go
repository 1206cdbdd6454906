// Package clinical produces illustrative lesion observations for risk
// reports. The values are drawn at random from a fixed catalog and are not
// derived from the image.
package clinical

import (
	"math/rand/v2"
	"sync"
)

// Disclaimer accompanies every synthesized observation.
const Disclaimer = "Clinical observation values are illustrative only and are not derived from the uploaded image. They are not a diagnosis."

// Stage is the only stage the catalog suggests.
const Stage = "T1"

var (
	Locations = []string{
		"Left lateral border of the tongue",
		"Floor of the mouth",
		"Buccal mucosa (inner cheek)",
		"Soft palate",
		"Lower lip",
	}
	Colorations = []string{
		"White patch (leukoplakia)",
		"Red patch (erythroplakia)",
		"White & red mixed patch (erythroleukoplakia)",
		"Ulcerated red area",
	}
	Surfaces = []string{
		"Irregular, mildly ulcerated",
		"Smooth, elevated",
		"Rough and nodular",
		"Ulcerated with indurated margins",
	}
	Sizes = []string{
		"0.5 x 0.5 cm",
		"1.0 x 0.8 cm",
		"1.2 x 1.0 cm",
		"1.5 x 1.0 cm",
		"1.8 x 1.2 cm",
		"2.0 x 1.5 cm",
		"2.2 x 1.7 cm",
		"2.5 x 2.0 cm",
		"3.0 x 2.5 cm",
		"3.5 x 3.0 cm",
	}
)

type Details struct {
	Location   string
	Coloration string
	Surface    string
	Size       string
	Stage      string
}

func (Details) Disclaimer() string {
	return Disclaimer
}

// Synthesizer is safe for concurrent use.
type Synthesizer struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSynthesizer returns a synthesizer drawing from src, or from a randomly
// seeded source when src is nil.
func NewSynthesizer(src rand.Source) *Synthesizer {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Synthesizer{rnd: rand.New(src)}
}

func (s *Synthesizer) Synthesize() Details {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Details{
		Location:   pick(s.rnd, Locations),
		Coloration: pick(s.rnd, Colorations),
		Surface:    pick(s.rnd, Surfaces),
		Size:       pick(s.rnd, Sizes),
		Stage:      Stage,
	}
}

func pick(r *rand.Rand, options []string) string {
	return options[r.IntN(len(options))]
}
