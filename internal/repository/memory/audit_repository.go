package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain"
)

// AuditRepository retains the most recent entries up to a fixed capacity.
type AuditRepository struct {
	mu       sync.Mutex
	entries  []*domain.AuditLog
	capacity int
}

func NewAuditRepository(capacity int) *AuditRepository {
	if capacity <= 0 {
		capacity = 10_000
	}
	return &AuditRepository{capacity: capacity}
}

func (r *AuditRepository) Create(_ context.Context, entry *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if len(r.entries) == r.capacity {
		r.entries = slices.Delete(r.entries, 0, 1)
	}
	r.entries = append(r.entries, entry)
	return nil
}

// Entries returns a snapshot of the retained entries, oldest first.
func (r *AuditRepository) Entries() []*domain.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.entries)
}
