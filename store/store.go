package store

import (
	"fmt"
	"sync"
	"time"

	"subgate-bot/model"

	"gorm.io/gorm"
)

// Ledger is the durable mapping from user ID to subscription record.
// Every mutation goes through Update's load-mutate-save cycle; callers
// never keep a record across an asynchronous boundary.
type Ledger interface {
	// Get returns the user's record, creating a zero-value one on
	// first access.
	Get(userID int64) (*model.User, error)

	// Update loads the record (creating it if absent), applies fn and
	// saves the result. Calls for the same user ID are serialized, so
	// two concurrent grants cannot lose an update. fn returning an
	// error aborts the save.
	Update(userID int64, fn func(*model.User) error) error

	// Expired returns every record whose subscription has lapsed at now.
	Expired(now time.Time) ([]model.User, error)

	// All returns every record.
	All() ([]model.User, error)
}

type gormLedger struct {
	db *gorm.DB

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// New wraps a gorm connection in a Ledger.
func New(db *gorm.DB) Ledger {
	return &gormLedger{
		db:    db,
		locks: make(map[int64]*sync.Mutex),
	}
}

// userLock returns the mutex serializing operations for one user ID.
// Locks are never reclaimed; the user population is small and records
// are never deleted anyway.
func (l *gormLedger) userLock(userID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk, ok := l.locks[userID]
	if !ok {
		lk = &sync.Mutex{}
		l.locks[userID] = lk
	}
	return lk
}

func (l *gormLedger) Get(userID int64) (*model.User, error) {
	user := model.User{ID: userID}
	if err := l.db.FirstOrCreate(&user, model.User{ID: userID}).Error; err != nil {
		return nil, fmt.Errorf("ledger get %d: %w", userID, err)
	}
	return &user, nil
}

func (l *gormLedger) Update(userID int64, fn func(*model.User) error) error {
	lk := l.userLock(userID)
	lk.Lock()
	defer lk.Unlock()

	user, err := l.Get(userID)
	if err != nil {
		return err
	}
	if err := fn(user); err != nil {
		return err
	}
	if err := l.db.Save(user).Error; err != nil {
		return fmt.Errorf("ledger save %d: %w", userID, err)
	}
	return nil
}

func (l *gormLedger) Expired(now time.Time) ([]model.User, error) {
	var users []model.User
	err := l.db.Where("expires_at IS NOT NULL AND expires_at <= ?", now).Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("ledger scan expired: %w", err)
	}
	return users, nil
}

func (l *gormLedger) All() ([]model.User, error) {
	var users []model.User
	if err := l.db.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("ledger scan: %w", err)
	}
	return users, nil
}
