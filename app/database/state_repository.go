package database

import (
	"database/sql"
	"strconv"
	"time"
)

var _ StateRepository = (*StateStore)(nil)

// StateStore is a small key/value table for process state that must
// survive restarts, such as the last time the consumer was active.
type StateStore struct {
	db *DB
}

func NewStateStore(db *DB) *StateStore {
	return &StateStore{db: db}
}

func (r *StateStore) Get(key string) (string, bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var value string
	err := r.db.QueryRow("SELECT value FROM app_state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, storeErr("get app state", err)
	}

	return value, true, nil
}

func (r *StateStore) Set(key, value string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	_, err := r.db.Exec(`
		INSERT INTO app_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().Format(EventTimeLayout))
	if err != nil {
		return storeErr("set app state", err)
	}

	return nil
}

func (r *StateStore) LastActive() (time.Time, bool, error) {
	value, ok, err := r.Get(LastActiveKey)
	if err != nil || !ok {
		return time.Time{}, false, err
	}

	millis, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, false, storeErr("parse last active timestamp", err)
	}

	return time.UnixMilli(millis), true, nil
}

func (r *StateStore) SetLastActive(t time.Time) error {
	return r.Set(LastActiveKey, strconv.FormatInt(t.UnixMilli(), 10))
}
