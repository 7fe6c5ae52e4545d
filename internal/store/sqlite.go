package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/xabinapal/dabrowser/internal/profile"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS profiles (
	seq            INTEGER PRIMARY KEY AUTOINCREMENT,
	fingerprint    TEXT NOT NULL UNIQUE,
	name           TEXT NOT NULL,
	proxy_ip       TEXT NOT NULL DEFAULT '',
	proxy_port     TEXT NOT NULL DEFAULT '',
	proxy_username TEXT NOT NULL DEFAULT '',
	proxy_password TEXT NOT NULL DEFAULT '',
	active         INTEGER NOT NULL DEFAULT 0
)`

// SQLiteStore keeps the profile set in an embedded SQLite database. The seq
// column preserves insertion order.
type SQLiteStore struct {
	db   *sql.DB
	path string
	opts options
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(FULL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers inside this process.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteStore{db: db, path: path, opts: buildOptions(opts)}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		// Load degrades to empty; Save reports the failure.
		s.opts.log.WithError(err).WithField("path", path).Warn("cannot create profile schema")
	}
	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Lock implements profile.Locker. Load and Save run in separate
// transactions, so the lock file spans the whole cycle.
func (s *SQLiteStore) Lock(ctx context.Context) (func(), error) {
	return lockFile(ctx, lockPath(s.path))
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context) (*profile.Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := s.opts.log.WithField("path", s.path)

	rows, err := s.db.QueryContext(ctx, `SELECT fingerprint, name, proxy_ip, proxy_port, proxy_username, proxy_password, active
		FROM profiles ORDER BY seq`)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.WithError(err).Warn("cannot query profile store, starting empty")
		return profile.NewSet(), nil
	}
	defer rows.Close()

	set := profile.NewSet()
	for rows.Next() {
		var p profile.Profile
		var active int
		if err := rows.Scan(&p.ID, &p.Name, &p.Proxy.Host, &p.Proxy.Port, &p.Proxy.Username, &p.Proxy.Password, &active); err != nil {
			log.WithError(err).Warn("unreadable profile row, starting empty")
			return profile.NewSet(), nil
		}
		p.Active = active != 0
		set.Put(p)
	}
	if err := rows.Err(); err != nil {
		log.WithError(err).Warn("cannot read profile store, starting empty")
		return profile.NewSet(), nil
	}

	warnInvalid(log, set)
	return set, nil
}

// Save implements Store. The table is replaced in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, set *profile.Set) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrPersistence, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("%w: schema: %v", ErrPersistence, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM profiles`); err != nil {
		return fmt.Errorf("%w: clear: %v", ErrPersistence, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO profiles
		(fingerprint, name, proxy_ip, proxy_port, proxy_username, proxy_password, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare: %v", ErrPersistence, err)
	}
	defer stmt.Close()

	for _, p := range set.List() {
		active := 0
		if p.Active {
			active = 1
		}
		if _, err := stmt.ExecContext(ctx, p.ID, p.Name, p.Proxy.Host, p.Proxy.Port, p.Proxy.Username, p.Proxy.Password, active); err != nil {
			return fmt.Errorf("%w: insert %s: %v", ErrPersistence, p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrPersistence, err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
