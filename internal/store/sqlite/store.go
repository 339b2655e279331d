// Package sqlite provides a SQLite-backed Store. Records live in one table
// keyed by address, so create-if-absent is a plain INSERT guarded by the
// primary key.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"lifereg/internal/address"
	"lifereg/internal/store"
	"lifereg/internal/store/sqlite/migrations"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Compile-time contract assertion.
var _ store.Store = (*Store)(nil)

// Store persists records in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite store at path and applies embedded migrations. The path
// ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := ":memory:"
	if path != ":memory:" {
		dsn = "file:" + filepath.Clean(path) +
			"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection serializes write transactions and keeps :memory: alive.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Update runs fn inside one SQL transaction.
func (s *Store) Update(ctx context.Context, fn func(store.Tx) error) error {
	return s.run(ctx, false, fn)
}

// View runs fn inside a read-only SQL transaction.
func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	return s.run(ctx, true, fn)
}

func (s *Store) run(ctx context.Context, readOnly bool, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return store.ErrClosed
	}
	sqlTx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		if errors.Is(err, sql.ErrConnDone) || strings.Contains(err.Error(), "database is closed") {
			return store.ErrClosed
		}
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	tx := &txn{ctx: ctx, tx: sqlTx, readOnly: readOnly}
	if err := fn(tx); err != nil {
		return err
	}
	if readOnly {
		return nil
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

type txn struct {
	ctx      context.Context
	tx       *sql.Tx
	readOnly bool
}

func (t *txn) Get(a address.Address) (store.Record, error) {
	var (
		kind int64
		data []byte
	)
	err := t.tx.QueryRowContext(t.ctx, `SELECT kind, data FROM records WHERE address = ?`, a[:]).Scan(&kind, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Record{}, store.ErrNotFound
	}
	if err != nil {
		return store.Record{}, fmt.Errorf("get record %s: %w", a.Short(), err)
	}
	return store.Record{Kind: address.Kind(kind), Data: data}, nil
}

func (t *txn) Create(a address.Address, r store.Record) error {
	if t.readOnly {
		return store.ErrReadOnly
	}
	now := time.Now().UTC().UnixMilli()
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO records (address, kind, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		a[:], int64(r.Kind), r.Data, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrOccupied
		}
		return fmt.Errorf("create record %s: %w", a.Short(), err)
	}
	return nil
}

func (t *txn) Put(a address.Address, r store.Record) error {
	if t.readOnly {
		return store.ErrReadOnly
	}
	res, err := t.tx.ExecContext(t.ctx,
		`UPDATE records SET kind = ?, data = ?, updated_at = ? WHERE address = ?`,
		int64(r.Kind), r.Data, time.Now().UTC().UnixMilli(), a[:],
	)
	if err != nil {
		return fmt.Errorf("put record %s: %w", a.Short(), err)
	}
	return expectOneRow(res)
}

func (t *txn) Delete(a address.Address) error {
	if t.readOnly {
		return store.ErrReadOnly
	}
	res, err := t.tx.ExecContext(t.ctx, `DELETE FROM records WHERE address = ?`, a[:])
	if err != nil {
		return fmt.Errorf("delete record %s: %w", a.Short(), err)
	}
	return expectOneRow(res)
}

func (t *txn) Scan(kind address.Kind, fn func(address.Address, store.Record) error) error {
	rows, err := t.tx.QueryContext(t.ctx,
		`SELECT address, data FROM records WHERE kind = ? ORDER BY address`, int64(kind))
	if err != nil {
		return fmt.Errorf("scan %s records: %w", kind, err)
	}
	defer rows.Close()

	type row struct {
		addr address.Address
		rec  store.Record
	}
	var all []row
	for rows.Next() {
		var (
			raw  []byte
			data []byte
		)
		if err := rows.Scan(&raw, &data); err != nil {
			return fmt.Errorf("scan %s records: %w", kind, err)
		}
		var a address.Address
		copy(a[:], raw)
		all = append(all, row{addr: a, rec: store.Record{Kind: kind, Data: data}})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("scan %s records: %w", kind, err)
	}
	// The single connection is busy until rows is drained, so callbacks run after.
	for _, r := range all {
		if err := fn(r.addr, r.rec); err != nil {
			return err
		}
	}
	return nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "records.address")
}
