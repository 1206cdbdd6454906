package leveldb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goleveldb "github.com/syndtr/goleveldb/leveldb"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain"
)

const userPrefix = "user_"

// UserRepository keeps accounts in the same DB as the records so a restart
// cannot re-register an existing username.
type UserRepository struct {
	db *goleveldb.DB
	mu sync.Mutex
}

// Users returns the account store sharing r's DB. Closing r closes both.
func (r *RecordRepository) Users() *UserRepository {
	return r.users
}

func (r *UserRepository) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := userKey(u.Username)
	if ok, err := r.db.Has(k, nil); err != nil {
		return fmt.Errorf("checking user key: %w", err)
	} else if ok {
		return domain.ErrUsernameTaken
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	return r.put(u)
}

func (r *UserRepository) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.get(username)
}

func (r *UserRepository) UpdateLastLogin(_ context.Context, username string, at time.Time) error {
	return r.mutate(username, func(u *domain.User) {
		u.LastLoginAt = &at
	})
}

func (r *UserRepository) UpdateDisplayName(_ context.Context, username, displayName string) error {
	return r.mutate(username, func(u *domain.User) {
		u.DisplayName = displayName
		u.UpdatedAt = time.Now()
	})
}

func (r *UserRepository) mutate(username string, fn func(u *domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, err := r.get(username)
	if err != nil {
		return err
	}
	fn(u)
	return r.put(u)
}

func (r *UserRepository) get(username string) (*domain.User, error) {
	data, err := r.db.Get(userKey(username), nil)
	if errors.Is(err, goleveldb.ErrNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading user: %w", err)
	}
	var u domain.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("decoding user %s: %w", username, err)
	}
	return &u, nil
}

func (r *UserRepository) put(u *domain.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encoding user: %w", err)
	}
	if err := r.db.Put(userKey(u.Username), data, nil); err != nil {
		return fmt.Errorf("writing user: %w", err)
	}
	return nil
}

func userKey(username string) []byte {
	return []byte(userPrefix + username)
}
