package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"decisio/api/internal/decision"
)

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

// Slot keys for the local scope documents.
const (
	slotHistory   = "decisio_history"
	slotSettings  = "decisio_settings"
	slotOnboarded = "decisio_onboarded"
)

// Local is the signed-out device store: a single sqlite file holding
// the record history, settings, and onboarding flag as JSON slots.
type Local struct {
	db *sql.DB
}

// OpenLocal opens (creating if needed) the sqlite store under dataDir.
// The special dataDir ":memory:" opens an in-memory database for tests.
func OpenLocal(dataDir string) (*Local, error) {
	dsn := ":memory:"
	if dataDir != ":memory:" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "decisio.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite is not safe for concurrent writers on one file.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal_mode: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	l := &Local{db: db}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Local) migrate() error {
	if _, err := l.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	applied := map[int]bool{}
	rows, err := l.db.Query(`SELECT version FROM schema_version`)
	if err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan schema_version: %w", err)
		}
		applied[v] = true
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate schema_version: %w", err)
	}

	entries, err := sqliteMigrations.ReadDir("migrations/sqlite")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			return fmt.Errorf("parse migration version from %q: %w", name, err)
		}
		if applied[version] {
			continue
		}
		body, err := sqliteMigrations.ReadFile("migrations/sqlite/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		tx, err := l.db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}
	return nil
}

// Close releases the underlying database.
func (l *Local) Close() error {
	return l.db.Close()
}

func (l *Local) readSlot(ctx context.Context, key string, out any) (bool, error) {
	var value string
	err := l.db.QueryRowContext(ctx, `SELECT value FROM slots WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read slot %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(value), out); err != nil {
		return false, fmt.Errorf("decode slot %s: %w", key, err)
	}
	return true, nil
}

func (l *Local) writeSlot(ctx context.Context, key string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode slot %s: %w", key, err)
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO slots (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(raw), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("write slot %s: %w", key, err)
	}
	return nil
}

// LoadRecords returns the full local record list, newest first as saved.
func (l *Local) LoadRecords(ctx context.Context, _ string) ([]decision.Record, error) {
	var records []decision.Record
	if _, err := l.readSlot(ctx, slotHistory, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// UpsertRecord replaces the record with the same ID or prepends a new one.
func (l *Local) UpsertRecord(ctx context.Context, _ string, rec decision.Record) error {
	records, err := l.LoadRecords(ctx, "")
	if err != nil {
		return err
	}
	replaced := false
	for i := range records {
		if records[i].ID == rec.ID {
			records[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		records = append([]decision.Record{rec}, records...)
	}
	return l.writeSlot(ctx, slotHistory, records)
}

// RemoveRecord deletes one record by ID. Removing an absent ID is a no-op.
func (l *Local) RemoveRecord(ctx context.Context, _ string, recordID string) error {
	records, err := l.LoadRecords(ctx, "")
	if err != nil {
		return err
	}
	out := records[:0]
	for _, r := range records {
		if r.ID != recordID {
			out = append(out, r)
		}
	}
	return l.writeSlot(ctx, slotHistory, out)
}

// ClearRecords empties the local record list.
func (l *Local) ClearRecords(ctx context.Context, _ string) error {
	return l.writeSlot(ctx, slotHistory, []decision.Record{})
}

// Settings returns the stored settings document, zero-valued when unset.
func (l *Local) Settings(ctx context.Context) (Settings, error) {
	var s Settings
	if _, err := l.readSlot(ctx, slotSettings, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// SaveSettings stores the settings document wholesale.
func (l *Local) SaveSettings(ctx context.Context, s Settings) error {
	return l.writeSlot(ctx, slotSettings, s)
}

// Onboarded reports whether onboarding has been completed on this device.
func (l *Local) Onboarded(ctx context.Context) (bool, error) {
	var done bool
	if _, err := l.readSlot(ctx, slotOnboarded, &done); err != nil {
		return false, err
	}
	return done, nil
}

// SetOnboarded records onboarding completion.
func (l *Local) SetOnboarded(ctx context.Context, done bool) error {
	return l.writeSlot(ctx, slotOnboarded, done)
}
