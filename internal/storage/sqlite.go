// Package storage provides SQLite implementation of the MetadataStore interface.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/hyperjump/soundsift/internal/models"
)

// Supported database/sql driver names.
const (
	DriverCGO    = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPureGo = "sqlite"  // modernc.org/sqlite
)

// ErrStoreMismatch is returned when the database was built with a different
// model version or dimension than the one configured.
var ErrStoreMismatch = errors.New("store was built with a different embedding model")

// SQLiteStorage implements MetadataStore using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath with the given driver
// and initializes the schema. Parent directories are created if they do not exist.
func NewSQLiteStorage(driver, dbPath string) (*SQLiteStorage, error) {
	switch driver {
	case "":
		driver = DriverCGO
	case DriverCGO, DriverPureGo:
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open(driver, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Serialize writers at the pool level; SQLite allows one writer anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		slot INTEGER UNIQUE,
		last_modified REAL NOT NULL DEFAULT 0,
		duration REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS store_info (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

const itemColumns = `id, path, slot, last_modified, duration`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*models.Item, error) {
	var item models.Item
	var slot sql.NullInt64
	if err := row.Scan(&item.ID, &item.Path, &slot, &item.LastModified, &item.Duration); err != nil {
		return nil, err
	}
	item.Slot = models.NoSlot
	if slot.Valid {
		item.Slot = slot.Int64
	}
	return &item, nil
}

// UpsertByPath inserts an item without a slot or refreshes last_modified and
// duration of an existing one. The slot of an existing item is never touched.
func (s *SQLiteStorage) UpsertByPath(ctx context.Context, path string, lastModified, duration float64) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO items (path, last_modified, duration) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET last_modified = excluded.last_modified, duration = excluded.duration
		 RETURNING id`,
		path, lastModified, duration,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert item %s: %w", path, err)
	}
	return id, nil
}

// InsertWithSlot inserts a new item bound to slot. It returns false, with nothing
// written, when the path or the slot is already taken.
func (s *SQLiteStorage) InsertWithSlot(ctx context.Context, path string, slot int64, lastModified, duration float64) (bool, error) {
	if slot < 0 {
		return false, fmt.Errorf("invalid slot %d", slot)
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO items (path, slot, last_modified, duration) VALUES (?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		path, slot, lastModified, duration,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert item %s: %w", path, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// LookupByPath returns the item for path, or nil when there is none.
func (s *SQLiteStorage) LookupByPath(ctx context.Context, path string) (*models.Item, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// LookupBySlot returns the item bound to slot, or nil when there is none.
func (s *SQLiteStorage) LookupBySlot(ctx context.Context, slot int64) (*models.Item, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE slot = ?`, slot))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ListItems returns items ordered by slot (unslotted last), then path.
func (s *SQLiteStorage) ListItems(ctx context.Context, offset, limit int) ([]*models.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items
		 ORDER BY slot IS NULL, slot, path LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// MaxSlot returns the highest committed slot, or -1 when no item has one.
func (s *SQLiteStorage) MaxSlot(ctx context.Context) (int64, error) {
	var max sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(slot) FROM items`).Scan(&max); err != nil {
		return 0, err
	}
	if !max.Valid {
		return models.NoSlot, nil
	}
	return max.Int64, nil
}

// DeleteItemsFromSlot removes every item whose slot is >= slot and returns their paths.
func (s *SQLiteStorage) DeleteItemsFromSlot(ctx context.Context, slot int64) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT path FROM items WHERE slot >= ? ORDER BY slot`, slot)
	if err != nil {
		return nil, err
	}
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return nil, err
		}
		paths = append(paths, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE slot >= ?`, slot); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return paths, nil
}

// StoreInfo returns the value stored under key and whether it exists.
func (s *SQLiteStorage) StoreInfo(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM store_info WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetStoreInfo stores value under key, replacing any previous value.
func (s *SQLiteStorage) SetStoreInfo(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO store_info (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// CountItems returns the total number of items.
func (s *SQLiteStorage) CountItems(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&count)
	return count, err
}

// CountSlotted returns the number of items bound to a vector slot.
func (s *SQLiteStorage) CountSlotted(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE slot IS NOT NULL`).Scan(&count)
	return count, err
}

// CountItemsFromSlot returns the number of items whose slot is >= slot.
func (s *SQLiteStorage) CountItemsFromSlot(ctx context.Context, slot int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE slot >= ?`, slot).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// EnsureModel records the model version and dimension on first use and rejects a
// store that was built with different ones.
func EnsureModel(ctx context.Context, store MetadataStore, modelVersion string, dims int) error {
	return checkModel(ctx, store, modelVersion, dims, true)
}

// CheckModel rejects a store built with a different model version or dimension. Unlike
// EnsureModel it never writes; an unrecorded store passes.
func CheckModel(ctx context.Context, store MetadataStore, modelVersion string, dims int) error {
	return checkModel(ctx, store, modelVersion, dims, false)
}

func checkModel(ctx context.Context, store MetadataStore, modelVersion string, dims int, record bool) error {
	want := map[string]string{
		InfoModelVersion: modelVersion,
		InfoDimensions:   strconv.Itoa(dims),
	}
	for _, key := range []string{InfoModelVersion, InfoDimensions} {
		got, ok, err := store.StoreInfo(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to read store info: %w", err)
		}
		if !ok {
			if !record {
				continue
			}
			if err := store.SetStoreInfo(ctx, key, want[key]); err != nil {
				return fmt.Errorf("failed to write store info: %w", err)
			}
			continue
		}
		if got != want[key] {
			return fmt.Errorf("%w: %s is %q, configured %q", ErrStoreMismatch, key, got, want[key])
		}
	}
	return nil
}
