// Package repotest holds the behaviour every record.Repository backend must
// share. Backend packages run it from their own tests.
package repotest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain/record"
)

// NewRecord returns a pending record with the given key and owner.
func NewRecord(key, owner string) *record.Record {
	now := time.Now().UTC().Truncate(time.Second)
	return &record.Record{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
		Key:       key,
		ImagePath: "static/uploads/" + key + ".jpg",
		Symptoms: record.Symptoms{
			PainLevel:    "High",
			Habits:       []string{record.HabitTobacco},
			TobaccoYears: "5",
		},
		Prediction:       record.LabelLowRisk,
		Confidence:       88.5,
		ConfidenceSource: record.ConfidenceScoreMargin,
		Status:           record.StatusPending,
		Username:         owner,
		Doctor:           record.DefaultDoctor,
	}
}

// RunRecordRepository exercises the record.Repository contract against a
// fresh repository returned by newRepo.
func RunRecordRepository(t *testing.T, newRepo func(t *testing.T) record.Repository) {
	ctx := context.Background()

	t.Run("append then find", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Append(ctx, NewRecord("20240101_100000", "alice")))

		got, err := repo.FindByKey(ctx, "20240101_100000")
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)
		assert.Equal(t, "5", got.Symptoms.TobaccoYears)
		assert.Equal(t, record.StatusPending, got.Status)
	})

	t.Run("duplicate key rejected", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Append(ctx, NewRecord("20240101_100000", "alice")))

		err := repo.Append(ctx, NewRecord("20240101_100000", "bob"))
		assert.ErrorIs(t, err, record.ErrDuplicateKey)
	})

	t.Run("unknown key", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.FindByKey(ctx, "missing")
		assert.ErrorIs(t, err, record.ErrRecordNotFound)

		_, err = repo.AppendReply(ctx, "missing", domain.RoleDoctor, "hi", time.Now())
		assert.ErrorIs(t, err, record.ErrRecordNotFound)

		_, err = repo.SetFollowUp(ctx, "missing", true)
		assert.ErrorIs(t, err, record.ErrRecordNotFound)

		_, err = repo.SetPDFPath(ctx, "missing", "x.pdf")
		assert.ErrorIs(t, err, record.ErrRecordNotFound)

		_, err = repo.SetAudioPath(ctx, "missing", "x.webm")
		assert.ErrorIs(t, err, record.ErrRecordNotFound)
	})

	t.Run("filter by owner keeps insertion order", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Append(ctx, NewRecord("20240101_100000", "alice")))
		require.NoError(t, repo.Append(ctx, NewRecord("20240101_100001", "bob")))
		require.NoError(t, repo.Append(ctx, NewRecord("20240101_100002", "alice")))
		require.NoError(t, repo.Append(ctx, NewRecord("20240101_100003", "")))

		mine, err := repo.FilterByOwner(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, mine, 2)
		assert.Equal(t, "20240101_100000", mine[0].Key)
		assert.Equal(t, "20240101_100002", mine[1].Key)

		all, err := repo.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Equal(t, "20240101_100003", all[3].Key)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Append(ctx, NewRecord("20240101_100000", "alice")))

		n, err := repo.DeleteByKey(ctx, "missing")
		require.NoError(t, err)
		assert.Zero(t, n)

		all, err := repo.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)

		n, err = repo.DeleteByKey(ctx, "20240101_100000")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		_, err = repo.FindByKey(ctx, "20240101_100000")
		assert.ErrorIs(t, err, record.ErrRecordNotFound)

		n, err = repo.DeleteByKey(ctx, "20240101_100000")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("replies are append-only", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Append(ctx, NewRecord("20240101_100000", "alice")))

		base := time.Now().UTC().Truncate(time.Second)
		for i := range 3 {
			rec, err := repo.AppendReply(ctx, "20240101_100000", domain.RolePatient, fmt.Sprintf("p%d", i), base.Add(time.Duration(i)*time.Second))
			require.NoError(t, err)
			require.Len(t, rec.PatientReplies, i+1)
			assert.Equal(t, record.StatusPending, rec.Status)
		}

		rec, err := repo.AppendReply(ctx, "20240101_100000", domain.RoleDoctor, "d0", base)
		require.NoError(t, err)
		assert.Equal(t, record.StatusReplied, rec.Status)

		rec, err = repo.AppendReply(ctx, "20240101_100000", domain.RoleDoctor, "d1", base)
		require.NoError(t, err)
		assert.Equal(t, record.StatusReplied, rec.Status)

		got, err := repo.FindByKey(ctx, "20240101_100000")
		require.NoError(t, err)
		require.Len(t, got.PatientReplies, 3)
		require.Len(t, got.DoctorReplies, 2)
		for i, r := range got.PatientReplies {
			assert.Equal(t, fmt.Sprintf("p%d", i), r.Message)
		}
		assert.Equal(t, "d0", got.DoctorReplies[0].Message)
		assert.Equal(t, "d1", got.DoctorReplies[1].Message)
	})

	t.Run("invalid reply leaves record untouched", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Append(ctx, NewRecord("20240101_100000", "alice")))

		_, err := repo.AppendReply(ctx, "20240101_100000", domain.Role("nurse"), "hi", time.Now())
		assert.ErrorIs(t, err, record.ErrInvalidRole)

		got, err := repo.FindByKey(ctx, "20240101_100000")
		require.NoError(t, err)
		assert.Empty(t, got.DoctorReplies)
		assert.Empty(t, got.PatientReplies)
		assert.Equal(t, record.StatusPending, got.Status)
	})

	t.Run("field mutations", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Append(ctx, NewRecord("20240101_100000", "alice")))

		rec, err := repo.SetFollowUp(ctx, "20240101_100000", true)
		require.NoError(t, err)
		assert.True(t, rec.FollowUp)

		rec, err = repo.SetFollowUp(ctx, "20240101_100000", false)
		require.NoError(t, err)
		assert.False(t, rec.FollowUp)

		_, err = repo.SetPDFPath(ctx, "20240101_100000", "static/report_20240101_100000.pdf")
		require.NoError(t, err)
		_, err = repo.SetAudioPath(ctx, "20240101_100000", "static/audio/20240101_100000_note.webm")
		require.NoError(t, err)

		got, err := repo.FindByKey(ctx, "20240101_100000")
		require.NoError(t, err)
		assert.Equal(t, "static/report_20240101_100000.pdf", got.PDFPath)
		assert.Equal(t, "static/audio/20240101_100000_note.webm", got.AudioPath)
		assert.Equal(t, "alice", got.Username)
	})

	t.Run("returned records are copies", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Append(ctx, NewRecord("20240101_100000", "alice")))

		got, err := repo.FindByKey(ctx, "20240101_100000")
		require.NoError(t, err)
		got.Status = record.StatusReplied
		got.Symptoms.Habits[0] = "Smoking"

		again, err := repo.FindByKey(ctx, "20240101_100000")
		require.NoError(t, err)
		assert.Equal(t, record.StatusPending, again.Status)
		assert.Equal(t, record.HabitTobacco, again.Symptoms.Habits[0])
	})

	t.Run("concurrent replies are not lost", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Append(ctx, NewRecord("20240101_100000", "alice")))

		const writers = 20
		var wg sync.WaitGroup
		for i := range writers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				role := domain.RolePatient
				if i%2 == 0 {
					role = domain.RoleDoctor
				}
				_, err := repo.AppendReply(ctx, "20240101_100000", role, fmt.Sprintf("m%d", i), time.Now())
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		got, err := repo.FindByKey(ctx, "20240101_100000")
		require.NoError(t, err)
		assert.Len(t, got.DoctorReplies, writers/2)
		assert.Len(t, got.PatientReplies, writers/2)
		assert.Equal(t, record.StatusReplied, got.Status)
	})
}
