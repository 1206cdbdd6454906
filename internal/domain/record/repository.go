package record

import (
	"context"
	"time"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain"
)

// Repository is implemented by every record backend. Implementations must be
// safe for concurrent use and must return copies, never shared state.
type Repository interface {
	// Append persists a new record. Returns ErrDuplicateKey if the key is taken.
	Append(ctx context.Context, r *Record) error

	// FindByKey returns the record with the given key or ErrRecordNotFound.
	FindByKey(ctx context.Context, key string) (*Record, error)

	// ListAll returns every record in insertion order.
	ListAll(ctx context.Context) ([]*Record, error)

	// FilterByOwner returns the records owned by username in insertion order.
	FilterByOwner(ctx context.Context, username string) ([]*Record, error)

	// DeleteByKey removes all records with the key and reports how many were
	// removed. Deleting an unknown key is a no-op and returns 0, nil.
	DeleteByKey(ctx context.Context, key string) (int, error)

	// AppendReply appends to the role's reply log. A doctor reply moves the
	// record to StatusReplied. Returns ErrRecordNotFound on an unknown key.
	AppendReply(ctx context.Context, key string, role domain.Role, message string, at time.Time) (*Record, error)

	SetFollowUp(ctx context.Context, key string, flagged bool) (*Record, error)
	SetAudioPath(ctx context.Context, key string, path string) (*Record, error)
	SetPDFPath(ctx context.Context, key string, path string) (*Record, error)
}
