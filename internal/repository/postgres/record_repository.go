package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain/record"
)

type RecordRepository struct {
	db *gorm.DB
}

func NewRecordRepository(db *gorm.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) Append(ctx context.Context, rec *record.Record) error {
	row := rec.Clone()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	err := r.db.WithContext(ctx).Create(row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return record.ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("inserting record: %w", err)
	}
	rec.ID = row.ID
	return nil
}

func (r *RecordRepository) FindByKey(ctx context.Context, key string) (*record.Record, error) {
	var rec record.Record
	err := r.db.WithContext(ctx).Where("record_key = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, record.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying record: %w", err)
	}
	return &rec, nil
}

func (r *RecordRepository) ListAll(ctx context.Context) ([]*record.Record, error) {
	var recs []*record.Record
	if err := r.ordered(ctx).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return recs, nil
}

func (r *RecordRepository) FilterByOwner(ctx context.Context, username string) ([]*record.Record, error) {
	var recs []*record.Record
	if err := r.ordered(ctx).Where("username = ?", username).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("listing records for owner: %w", err)
	}
	return recs, nil
}

func (r *RecordRepository) DeleteByKey(ctx context.Context, key string) (int, error) {
	res := r.db.WithContext(ctx).Where("record_key = ?", key).Delete(&record.Record{})
	if res.Error != nil {
		return 0, fmt.Errorf("deleting record: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (r *RecordRepository) AppendReply(ctx context.Context, key string, role domain.Role, message string, at time.Time) (*record.Record, error) {
	return r.mutate(ctx, key, func(rec *record.Record) error {
		return rec.AddReply(role, message, at)
	})
}

func (r *RecordRepository) SetFollowUp(ctx context.Context, key string, flagged bool) (*record.Record, error) {
	return r.mutate(ctx, key, func(rec *record.Record) error {
		rec.FollowUp = flagged
		return nil
	})
}

func (r *RecordRepository) SetAudioPath(ctx context.Context, key string, path string) (*record.Record, error) {
	return r.mutate(ctx, key, func(rec *record.Record) error {
		rec.AudioPath = path
		return nil
	})
}

func (r *RecordRepository) SetPDFPath(ctx context.Context, key string, path string) (*record.Record, error) {
	return r.mutate(ctx, key, func(rec *record.Record) error {
		rec.PDFPath = path
		return nil
	})
}

// mutate runs fn against the row under SELECT ... FOR UPDATE so concurrent
// replies on one key serialize in the database.
func (r *RecordRepository) mutate(ctx context.Context, key string, fn func(rec *record.Record) error) (*record.Record, error) {
	var out record.Record
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("record_key = ?", key).
			First(&out).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return record.ErrRecordNotFound
		}
		if err != nil {
			return fmt.Errorf("locking record: %w", err)
		}
		if err := fn(&out); err != nil {
			return err
		}
		if err := tx.Save(&out).Error; err != nil {
			return fmt.Errorf("saving record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *RecordRepository) ordered(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Order("created_at ASC").Order("record_key ASC")
}
