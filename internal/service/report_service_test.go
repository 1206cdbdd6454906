package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/clinical"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain/record"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/report"
)

type generatorFunc func(ctx context.Context, rec *record.Record, meta report.PatientMeta) (string, error)

func (f generatorFunc) Generate(ctx context.Context, rec *record.Record, meta report.PatientMeta) (string, error) {
	return f(ctx, rec, meta)
}

func TestRender_WritesReportAndRecordsPath(t *testing.T) {
	f := newFixture(t, scoreOf(0.1))
	ctx := context.Background()

	rec, err := f.records.Predict(ctx, alice, record.SubmitCommand{Image: pngBytes(t)})
	require.NoError(t, err)

	gen := report.NewGenerator(f.files.ReportDir(), report.NewFPDFRenderer("test"), clinical.NewSynthesizer(rand.NewPCG(1, 1)), zap.NewNop())
	svc := NewReportService(f.records, f.repo, gen, f.audit, f.metrics, zap.NewNop())

	path, err := svc.Render(ctx, doctor, rec.Key, report.PatientMeta{Name: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.files.ReportDir(), "report_"+rec.Key+".pdf"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data[:4]))

	stored, err := f.repo.FindByKey(ctx, rec.Key)
	require.NoError(t, err)
	assert.Equal(t, path, stored.PDFPath)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ReportsGenerated))
}

func TestRender_Errors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	rec, err := f.records.Predict(ctx, alice, record.SubmitCommand{Image: pngBytes(t)})
	require.NoError(t, err)

	failing := generatorFunc(func(context.Context, *record.Record, report.PatientMeta) (string, error) {
		return "", &report.GenerationError{Key: rec.Key, Err: errors.New("disk full")}
	})
	svc := NewReportService(f.records, f.repo, failing, f.audit, f.metrics, zap.NewNop())

	_, err = svc.Render(ctx, alice, rec.Key, report.PatientMeta{})
	var procErr *ProcessingError
	require.ErrorAs(t, err, &procErr)
	var genErr *report.GenerationError
	assert.ErrorAs(t, err, &genErr)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ReportsFailed))

	_, err = svc.Render(ctx, bob, rec.Key, report.PatientMeta{})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Render(ctx, doctor, "19990101_000000", report.PatientMeta{})
	assert.ErrorIs(t, err, record.ErrRecordNotFound)

	_, err = svc.Render(ctx, doctor, "", report.PatientMeta{})
	assert.ErrorIs(t, err, ErrMissingInput)
}
