package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain/record"
)

// RecordRepository keeps records for the lifetime of the process. A single
// RWMutex serializes every mutation.
type RecordRepository struct {
	mu      sync.RWMutex
	records map[string]*record.Record
	order   []string
}

func NewRecordRepository() *RecordRepository {
	return &RecordRepository{
		records: make(map[string]*record.Record),
	}
}

func (r *RecordRepository) Append(_ context.Context, rec *record.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[rec.Key]; ok {
		return record.ErrDuplicateKey
	}
	r.records[rec.Key] = rec.Clone()
	r.order = append(r.order, rec.Key)
	return nil
}

func (r *RecordRepository) FindByKey(_ context.Context, key string) (*record.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[key]
	if !ok {
		return nil, record.ErrRecordNotFound
	}
	return rec.Clone(), nil
}

func (r *RecordRepository) ListAll(_ context.Context) ([]*record.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*record.Record, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.records[key].Clone())
	}
	return out, nil
}

func (r *RecordRepository) FilterByOwner(_ context.Context, username string) ([]*record.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*record.Record, 0)
	for _, key := range r.order {
		if rec := r.records[key]; rec.Username == username {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (r *RecordRepository) DeleteByKey(_ context.Context, key string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[key]; !ok {
		return 0, nil
	}
	delete(r.records, key)
	r.order = slices.DeleteFunc(r.order, func(k string) bool { return k == key })
	return 1, nil
}

func (r *RecordRepository) AppendReply(_ context.Context, key string, role domain.Role, message string, at time.Time) (*record.Record, error) {
	return r.mutate(key, func(rec *record.Record) error {
		return rec.AddReply(role, message, at)
	})
}

func (r *RecordRepository) SetFollowUp(_ context.Context, key string, flagged bool) (*record.Record, error) {
	return r.mutate(key, func(rec *record.Record) error {
		rec.FollowUp = flagged
		return nil
	})
}

func (r *RecordRepository) SetAudioPath(_ context.Context, key string, path string) (*record.Record, error) {
	return r.mutate(key, func(rec *record.Record) error {
		rec.AudioPath = path
		return nil
	})
}

func (r *RecordRepository) SetPDFPath(_ context.Context, key string, path string) (*record.Record, error) {
	return r.mutate(key, func(rec *record.Record) error {
		rec.PDFPath = path
		return nil
	})
}

// mutate applies fn to a working copy and swaps it in only on success, so a
// failed mutation leaves the stored record untouched.
func (r *RecordRepository) mutate(key string, fn func(rec *record.Record) error) (*record.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.records[key]
	if !ok {
		return nil, record.ErrRecordNotFound
	}
	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	r.records[key] = working
	return working.Clone(), nil
}
