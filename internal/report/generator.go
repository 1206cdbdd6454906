package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/clinical"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain/record"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/imaging"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/storage"
)

// GenerationError wraps any failure while producing a report.
type GenerationError struct {
	Key string
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generating report for %s: %v", e.Key, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

type Generator struct {
	dir      string
	renderer Renderer
	synth    *clinical.Synthesizer
	log      *zap.Logger
}

func NewGenerator(dir string, renderer Renderer, synth *clinical.Synthesizer, log *zap.Logger) *Generator {
	return &Generator{dir: dir, renderer: renderer, synth: synth, log: log}
}

// FileName is the report name for a record key.
func FileName(key string) string {
	return "report_" + key + ".pdf"
}

// Generate renders rec to <dir>/report_<key>.pdf and returns the path. The
// file only appears once fully written. A missing image renders as a
// placeholder; an unreadable one fails the report.
func (g *Generator) Generate(ctx context.Context, rec *record.Record, meta PatientMeta) (string, error) {
	if storage.SecureFilename(rec.Key) != rec.Key {
		return "", &GenerationError{Key: rec.Key, Err: storage.ErrInvalidName}
	}

	in := Input{Record: rec, Meta: meta}
	if rec.IsRisk() {
		d := g.synth.Synthesize()
		in.Details = &d
	}
	if rec.ImagePath != "" {
		img, err := imaging.NormalizeFile(rec.ImagePath)
		switch {
		case errors.Is(err, os.ErrNotExist):
			g.log.Warn("report image missing",
				zap.String("record_key", rec.Key),
				zap.String("image_path", rec.ImagePath),
			)
		case err != nil:
			return "", &GenerationError{Key: rec.Key, Err: err}
		default:
			in.Image = img
		}
	}

	var buf bytes.Buffer
	if err := g.renderer.Render(ctx, Build(in), &buf); err != nil {
		return "", &GenerationError{Key: rec.Key, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return "", &GenerationError{Key: rec.Key, Err: err}
	}

	path := filepath.Join(g.dir, FileName(rec.Key))
	if err := storage.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return "", &GenerationError{Key: rec.Key, Err: err}
	}
	return path, nil
}
