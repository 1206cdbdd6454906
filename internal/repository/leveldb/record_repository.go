package leveldb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	goleveldb "github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain/record"
)

// Key layout:
//
//	record_<key>      => JSON storedRecord
//	seq_latest        => last assigned insertion sequence
//	user_<username>   => JSON domain.User
const (
	recordPrefix = "record_"
	seqKey       = "seq_latest"
)

type storedRecord struct {
	Seq    uint64         `json:"seq"`
	Record *record.Record `json:"record"`
}

// RecordRepository stores records in an embedded LevelDB. Reads go straight
// to the DB; read-modify-write paths hold mu.
type RecordRepository struct {
	db    *goleveldb.DB
	mu    sync.Mutex
	users *UserRepository
}

func newRecordRepository(db *goleveldb.DB) *RecordRepository {
	return &RecordRepository{db: db, users: &UserRepository{db: db}}
}

func Open(path string) (*RecordRepository, error) {
	db, err := goleveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("opening leveldb at %s: %w", path, err)
	}
	return newRecordRepository(db), nil
}

// OpenInMemory returns a repository backed by volatile memory storage.
func OpenInMemory() (*RecordRepository, error) {
	db, err := goleveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("opening in-memory leveldb: %w", err)
	}
	return newRecordRepository(db), nil
}

func (r *RecordRepository) Close() error {
	return r.db.Close()
}

func (r *RecordRepository) Append(_ context.Context, rec *record.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := recordKey(rec.Key)
	if ok, err := r.db.Has(k, nil); err != nil {
		return fmt.Errorf("checking record key: %w", err)
	} else if ok {
		return record.ErrDuplicateKey
	}

	seq, err := r.nextSeq()
	if err != nil {
		return err
	}

	data, err := json.Marshal(storedRecord{Seq: seq, Record: rec})
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}

	batch := new(goleveldb.Batch)
	batch.Put(k, data)
	batch.Put([]byte(seqKey), []byte(strconv.FormatUint(seq, 10)))
	if err := r.db.Write(batch, nil); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	return nil
}

func (r *RecordRepository) FindByKey(_ context.Context, key string) (*record.Record, error) {
	stored, err := r.get(key)
	if err != nil {
		return nil, err
	}
	return stored.Record, nil
}

func (r *RecordRepository) ListAll(_ context.Context) ([]*record.Record, error) {
	return r.scan(func(*record.Record) bool { return true })
}

func (r *RecordRepository) FilterByOwner(_ context.Context, username string) ([]*record.Record, error) {
	return r.scan(func(rec *record.Record) bool { return rec.Username == username })
}

func (r *RecordRepository) DeleteByKey(_ context.Context, key string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := recordKey(key)
	ok, err := r.db.Has(k, nil)
	if err != nil {
		return 0, fmt.Errorf("checking record key: %w", err)
	}
	if !ok {
		return 0, nil
	}
	if err := r.db.Delete(k, nil); err != nil {
		return 0, fmt.Errorf("deleting record: %w", err)
	}
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

func (r *RecordRepository) mutate(key string, fn func(rec *record.Record) error) (*record.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.get(key)
	if err != nil {
		return nil, err
	}
	if err := fn(stored.Record); err != nil {
		return nil, err
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	if err := r.db.Put(recordKey(key), data, nil); err != nil {
		return nil, fmt.Errorf("writing record: %w", err)
	}
	return stored.Record, nil
}

func (r *RecordRepository) get(key string) (*storedRecord, error) {
	data, err := r.db.Get(recordKey(key), nil)
	if errors.Is(err, goleveldb.ErrNotFound) {
		return nil, record.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading record: %w", err)
	}
	var stored storedRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decoding record %s: %w", key, err)
	}
	return &stored, nil
}

func (r *RecordRepository) scan(keep func(*record.Record) bool) ([]*record.Record, error) {
	iter := r.db.NewIterator(util.BytesPrefix([]byte(recordPrefix)), nil)
	defer iter.Release()

	var stored []storedRecord
	for iter.Next() {
		var s storedRecord
		if err := json.Unmarshal(iter.Value(), &s); err != nil {
			return nil, fmt.Errorf("decoding record %s: %w", iter.Key(), err)
		}
		if keep(s.Record) {
			stored = append(stored, s)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}

	slices.SortFunc(stored, func(a, b storedRecord) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})

	out := make([]*record.Record, 0, len(stored))
	for _, s := range stored {
		out = append(out, s.Record)
	}
	return out, nil
}

func (r *RecordRepository) nextSeq() (uint64, error) {
	data, err := r.db.Get([]byte(seqKey), nil)
	if errors.Is(err, goleveldb.ErrNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading sequence: %w", err)
	}
	last, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing sequence: %w", err)
	}
	return last + 1, nil
}

func recordKey(key string) []byte {
	return []byte(recordPrefix + key)
}
