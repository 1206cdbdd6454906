package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/config"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/inference"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/repository/memory"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/storage"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/pkg/metrics"
)

var (
	doctor   = Caller{Principal: domain.Principal{Username: "house", Role: domain.RoleDoctor, DisplayName: "Dr. House"}}
	alice    = Caller{Principal: domain.Principal{Username: "alice", Role: domain.RolePatient, DisplayName: "alice"}}
	bob      = Caller{Principal: domain.Principal{Username: "bob", Role: domain.RolePatient, DisplayName: "bob"}}
	nobody   = Caller{}
	fixedNow = time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)
)

type fixture struct {
	repo    *memory.RecordRepository
	audits  *memory.AuditRepository
	audit   *AuditService
	files   *storage.FileStore
	records *RecordService
	metrics *metrics.Collector
}

func newFixture(t *testing.T, classifier inference.Classifier) *fixture {
	t.Helper()

	root := filepath.Join(t.TempDir(), "static")
	files, err := storage.New(config.StorageConfig{
		StaticDir: root,
		UploadDir: filepath.Join(root, "uploads"),
		AudioDir:  filepath.Join(root, "audio"),
		ReportDir: root,
	})
	require.NoError(t, err)

	if classifier == nil {
		classifier = scoreOf(0.2)
	}

	m := metrics.NewCollector("test", prometheus.NewRegistry())
	audits := memory.NewAuditRepository(100)
	audit := NewAuditService(audits, m, zap.NewNop())
	t.Cleanup(audit.Shutdown)

	policy, err := inference.NewConfidencePolicy(inference.ModeLegacy, rand.NewPCG(1, 2))
	require.NoError(t, err)

	repo := memory.NewRecordRepository()
	records := NewRecordService(repo, classifier, policy, files, audit, m, zap.NewNop())
	records.now = func() time.Time { return fixedNow }

	return &fixture{repo: repo, audits: audits, audit: audit, files: files, records: records, metrics: m}
}

func scoreOf(score float64) inference.Classifier {
	return inference.ClassifierFunc(func(ctx context.Context, t inference.Tensor) (float64, error) {
		return score, nil
	})
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
