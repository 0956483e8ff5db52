package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

// ErrNotFound is returned when a tenant-scoped row does not exist.
var ErrNotFound = errors.New("record not found")

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const (
	ckSettings   = "settings_%s_%s"
	ckValuations = "valuations_%s"
)

// Store persists tenant data in SQLite. Settings and valuations are read
// through an in-memory cache invalidated on every write.
type Store struct {
	db    *sql.DB
	cache *cache.Cache
	now   func() time.Time
}

// New returns a Store over db using c for read caching.
func New(db *sql.DB, c *cache.Cache) *Store {
	return &Store{db: db, cache: c, now: func() time.Time { return time.Now().UTC() }}
}

func settingsKey(tenant, module string) string {
	return fmt.Sprintf(ckSettings, tenant, module)
}

func valuationsKey(tenant string) string {
	return fmt.Sprintf(ckValuations, tenant)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return t, nil
}
