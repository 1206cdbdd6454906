package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain/record"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/inference"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/pkg/metrics"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/pkg/tracer"
)

// Same-second submissions get _1, _2, ... up to this many suffixes.
const maxKeySuffix = 99

// unscoredConfidence is what the form-only submission path reports.
const unscoredConfidence = 95

type FileStore interface {
	ImagePath(key string) string
	SaveImage(key string, img image.Image) (string, error)
	SaveUpload(at time.Time, r io.Reader) (string, error)
	SaveAudio(key, filename string, r io.Reader) (string, error)
}

type RecordService struct {
	repo       record.Repository
	classifier inference.Classifier
	confidence inference.ConfidencePolicy
	files      FileStore
	audit      *AuditService
	metrics    *metrics.Collector
	tracer     trace.Tracer
	log        *zap.Logger
	now        func() time.Time
}

func NewRecordService(
	repo record.Repository,
	classifier inference.Classifier,
	confidence inference.ConfidencePolicy,
	files FileStore,
	audit *AuditService,
	m *metrics.Collector,
	log *zap.Logger,
) *RecordService {
	return &RecordService{
		repo:       repo,
		classifier: classifier,
		confidence: confidence,
		files:      files,
		audit:      audit,
		metrics:    m,
		tracer:     tracer.Tracer("service"),
		log:        log,
		now:        time.Now,
	}
}

// Predict classifies the uploaded image and stores a new record owned by the
// caller (anonymous callers create unowned records).
func (s *RecordService) Predict(ctx context.Context, caller Caller, cmd record.SubmitCommand) (*record.Record, error) {
	ctx, span := s.tracer.Start(ctx, "RecordService.Predict")
	defer span.End()

	if len(cmd.Image) == 0 {
		return nil, &MissingInputError{Field: "image"}
	}

	tensor, img, err := inference.Preprocess(bytes.NewReader(cmd.Image))
	if err != nil {
		span.SetStatus(codes.Error, "invalid image")
		return nil, err
	}

	start := time.Now()
	score, err := s.classifier.Classify(ctx, tensor)
	s.metrics.InferenceDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.InferenceFailures.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "classification failed")
		var invalid *inference.InvalidImageError
		if errors.As(err, &invalid) {
			return nil, err
		}
		s.log.Error("classification failed", zap.Error(err))
		return nil, &ProcessingError{Op: "classifying image", Err: err}
	}

	label := inference.LabelFor(score)
	confidence, source := s.confidence.Confidence(score)
	s.metrics.PredictionsTotal.WithLabelValues(string(label)).Inc()
	span.SetAttributes(
		attribute.Float64("classifier.score", score),
		attribute.String("classifier.label", string(label)),
	)

	rec := &record.Record{
		Symptoms:         cmd.Symptoms,
		Prediction:       label,
		Score:            &score,
		Confidence:       confidence,
		ConfidenceSource: source,
	}
	return s.create(ctx, caller, rec, img)
}

// Submit stores a screening form without classifying the image. The record
// is labelled low risk with a fixed confidence and marked unscored.
func (s *RecordService) Submit(ctx context.Context, caller Caller, cmd record.SubmitCommand) (*record.Record, error) {
	ctx, span := s.tracer.Start(ctx, "RecordService.Submit")
	defer span.End()

	if len(cmd.Image) == 0 {
		return nil, &MissingInputError{Field: "image"}
	}

	_, img, err := inference.Preprocess(bytes.NewReader(cmd.Image))
	if err != nil {
		return nil, err
	}

	rec := &record.Record{
		Symptoms:         cmd.Symptoms,
		Prediction:       record.LabelLowRisk,
		Confidence:       unscoredConfidence,
		ConfidenceSource: record.ConfidenceUnscored,
	}
	return s.create(ctx, caller, rec, img)
}

// create reserves a key by appending the record, then writes the image.
func (s *RecordService) create(ctx context.Context, caller Caller, rec *record.Record, img image.Image) (*record.Record, error) {
	now := s.now()
	base := record.KeyFor(now)

	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.Status = record.StatusPending
	rec.Username = caller.Username
	rec.Doctor = record.DefaultDoctor

	var err error
	for n := 0; n <= maxKeySuffix; n++ {
		rec.Key = base
		if n > 0 {
			rec.Key = record.DisambiguatedKey(base, n)
		}
		rec.ImagePath = s.files.ImagePath(rec.Key)

		err = s.repo.Append(ctx, rec)
		if !errors.Is(err, record.ErrDuplicateKey) {
			break
		}
	}
	if err != nil {
		s.log.Error("failed to store record", zap.String("record_key", rec.Key), zap.Error(err))
		return nil, fmt.Errorf("storing record: %w", err)
	}

	if _, err := s.files.SaveImage(rec.Key, img); err != nil {
		s.log.Error("failed to save image", zap.String("record_key", rec.Key), zap.Error(err))
		if _, derr := s.repo.DeleteByKey(ctx, rec.Key); derr != nil {
			s.log.Error("failed to roll back record", zap.String("record_key", rec.Key), zap.Error(derr))
		}
		return nil, &ProcessingError{Op: "saving image", Err: err}
	}

	s.metrics.RecordsCreatedTotal.WithLabelValues(rec.ConfidenceSource).Inc()
	s.audit.LogAsync(ctx, AuditEntry{
		Caller:       caller,
		Action:       domain.ActionCreate,
		ResourceType: resourceRecord,
		ResourceID:   rec.Key,
	})

	s.log.Info("patient record created",
		zap.String("record_key", rec.Key),
		zap.String("prediction", string(rec.Prediction)),
		zap.String("confidence_source", rec.ConfidenceSource),
		zap.Bool("anonymous", caller.IsAnonymous()),
	)

	return rec, nil
}

func (s *RecordService) Get(ctx context.Context, caller Caller, key string) (*record.Record, error) {
	if key == "" {
		return nil, &MissingInputError{Field: "timestamp"}
	}
	if err := caller.requireLogin(); err != nil {
		return nil, err
	}

	rec, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := caller.canAccess(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *RecordService) ListForDoctor(ctx context.Context, caller Caller) ([]*record.Record, error) {
	if err := caller.requireRole(domain.RoleDoctor); err != nil {
		return nil, err
	}
	return s.repo.ListAll(ctx)
}

func (s *RecordService) ListForPatient(ctx context.Context, caller Caller) ([]*record.Record, error) {
	if err := caller.requireRole(domain.RolePatient); err != nil {
		return nil, err
	}
	return s.repo.FilterByOwner(ctx, caller.Username)
}

// Reply appends message to the caller's role log on the record.
func (s *RecordService) Reply(ctx context.Context, caller Caller, key, message string) (*record.Record, error) {
	if key == "" {
		return nil, &MissingInputError{Field: "timestamp"}
	}
	if strings.TrimSpace(message) == "" {
		return nil, &MissingInputError{Field: "message"}
	}
	if _, err := s.Get(ctx, caller, key); err != nil {
		return nil, err
	}

	rec, err := s.repo.AppendReply(ctx, key, caller.Role, message, s.now())
	if err != nil {
		return nil, err
	}

	s.metrics.RepliesTotal.WithLabelValues(string(caller.Role)).Inc()
	s.audit.LogAsync(ctx, AuditEntry{
		Caller:       caller,
		Action:       domain.ActionUpdate,
		ResourceType: resourceRecord,
		ResourceID:   key,
		Changes:      fmt.Sprintf(`{"reply_by":%q}`, caller.Role),
	})
	return rec, nil
}

func (s *RecordService) SetFollowUp(ctx context.Context, caller Caller, key string, flagged bool) (*record.Record, error) {
	if key == "" {
		return nil, &MissingInputError{Field: "timestamp"}
	}
	if err := caller.requireRole(domain.RoleDoctor); err != nil {
		return nil, err
	}

	rec, err := s.repo.SetFollowUp(ctx, key, flagged)
	if err != nil {
		return nil, err
	}

	s.audit.LogAsync(ctx, AuditEntry{
		Caller:       caller,
		Action:       domain.ActionUpdate,
		ResourceType: resourceRecord,
		ResourceID:   key,
		Changes:      fmt.Sprintf(`{"follow_up":%t}`, flagged),
	})
	return rec, nil
}

// Delete removes the record. Unknown keys are a no-op.
func (s *RecordService) Delete(ctx context.Context, caller Caller, key string) (int, error) {
	if key == "" {
		return 0, &MissingInputError{Field: "timestamp"}
	}
	if err := caller.requireRole(domain.RoleDoctor); err != nil {
		return 0, err
	}

	n, err := s.repo.DeleteByKey(ctx, key)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		s.log.Info("delete of unknown record ignored", zap.String("record_key", key))
		return 0, nil
	}

	s.audit.LogAsync(ctx, AuditEntry{
		Caller:       caller,
		Action:       domain.ActionDelete,
		ResourceType: resourceRecord,
		ResourceID:   key,
	})
	return n, nil
}

// AttachAudio stores a voice note and links it to the record.
func (s *RecordService) AttachAudio(ctx context.Context, caller Caller, key, filename string, r io.Reader) (*record.Record, error) {
	if r == nil || filename == "" {
		return nil, &MissingInputError{Field: "audio"}
	}
	if _, err := s.Get(ctx, caller, key); err != nil {
		return nil, err
	}

	path, err := s.files.SaveAudio(key, filename, r)
	if err != nil {
		return nil, &ProcessingError{Op: "saving audio", Err: err}
	}

	rec, err := s.repo.SetAudioPath(ctx, key, path)
	if err != nil {
		return nil, err
	}

	s.audit.LogAsync(ctx, AuditEntry{
		Caller:       caller,
		Action:       domain.ActionUpdate,
		ResourceType: resourceRecord,
		ResourceID:   key,
		Changes:      `{"audio":true}`,
	})
	return rec, nil
}

// UploadImage stores a standalone image that is not linked to a record.
func (s *RecordService) UploadImage(ctx context.Context, caller Caller, r io.Reader) (string, error) {
	if r == nil {
		return "", &MissingInputError{Field: "image"}
	}
	path, err := s.files.SaveUpload(s.now(), r)
	if err != nil {
		return "", &ProcessingError{Op: "saving upload", Err: err}
	}
	s.log.Info("image uploaded", zap.String("path", path), zap.Bool("anonymous", caller.IsAnonymous()))
	return path, nil
}
