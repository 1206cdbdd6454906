package inference

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain/record"
)

// Threshold splits scores: below it the image is flagged as risk.
const Threshold = 0.5

// Classifier scores a preprocessed image. Scores are in [0,1]; higher means
// less likely malignant.
type Classifier interface {
	Classify(ctx context.Context, t Tensor) (float64, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, t Tensor) (float64, error)

func (f ClassifierFunc) Classify(ctx context.Context, t Tensor) (float64, error) {
	return f(ctx, t)
}

func LabelFor(score float64) record.Label {
	if score < Threshold {
		return record.LabelRisk
	}
	return record.LabelLowRisk
}

func checkScore(score float64) error {
	if math.IsNaN(score) || score < 0 || score > 1 {
		return fmt.Errorf("%w: %v", ErrScoreOutOfRange, score)
	}
	return nil
}

// ConfidencePolicy turns a score into the percentage shown to users and
// names where that number came from.
type ConfidencePolicy interface {
	Confidence(score float64) (value float64, source string)
}

// Confidence modes accepted by NewConfidencePolicy.
const (
	ModeLegacy = "legacy"
	ModeMargin = "margin"
)

// NewConfidencePolicy returns the policy for mode. src seeds the legacy
// policy; nil uses a randomly seeded source.
func NewConfidencePolicy(mode string, src rand.Source) (ConfidencePolicy, error) {
	switch mode {
	case ModeLegacy:
		if src == nil {
			src = rand.NewPCG(rand.Uint64(), rand.Uint64())
		}
		return &legacyConfidence{rnd: rand.New(src)}, nil
	case ModeMargin:
		return marginConfidence{}, nil
	default:
		return nil, fmt.Errorf("unknown confidence mode %q", mode)
	}
}

// legacyConfidence reports a uniform draw from [77, 97] regardless of score.
type legacyConfidence struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func (p *legacyConfidence) Confidence(float64) (float64, string) {
	p.mu.Lock()
	v := 77 + p.rnd.Float64()*20
	p.mu.Unlock()
	return round2(v), record.ConfidenceLegacyRandom
}

type marginConfidence struct{}

func (marginConfidence) Confidence(score float64) (float64, string) {
	return round2(50 + math.Abs(score-Threshold)*100), record.ConfidenceScoreMargin
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
