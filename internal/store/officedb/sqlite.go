// Package officedb is the durable sqlite backend for the ledger's
// key-value state, plus a small audit index of committed operations.
package officedb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"paulette.land/internal/registry"
)

type DB struct {
	db *sql.DB
}

func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	// WAL keeps commits cheap; FULL because the kv table IS the ledger,
	// not a rebuildable index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ops (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			op TEXT NOT NULL,
			office TEXT NOT NULL,
			actor TEXT NOT NULL,
			amount TEXT,
			at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_ops_office ON ops(office, seq);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Get implements store.KV.
func (d *DB) Get(key string) ([]byte, bool) {
	var v []byte
	err := d.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if err != nil {
		return nil, false
	}
	return v, true
}

func (d *DB) Has(key string) bool {
	_, ok := d.Get(key)
	return ok
}

func (d *DB) Set(key string, value []byte) {
	_, _ = d.db.Exec(`INSERT OR REPLACE INTO kv(key,value) VALUES(?,?)`, key, value)
}

func (d *DB) Remove(key string) {
	_, _ = d.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
}

// ApplyBatch implements store.Batcher: one operation's staged writes
// land in a single sqlite transaction.
func (d *DB) ApplyBatch(sets map[string][]byte, removes map[string]struct{}) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for k := range removes {
		if _, err := tx.Exec(`DELETE FROM kv WHERE key = ?`, k); err != nil {
			return err
		}
	}
	for k, v := range sets {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO kv(key,value) VALUES(?,?)`, k, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RecordOp implements registry.AuditSink. Failures are dropped: the
// audit index is a secondary read model, never a reason to fail an
// already committed operation.
func (d *DB) RecordOp(rec registry.OpRecord) {
	_, _ = d.db.Exec(
		`INSERT INTO ops(op,office,actor,amount,at) VALUES(?,?,?,?,?)`,
		rec.Op, rec.Office, rec.Actor, rec.Amount, int64(rec.At),
	)
}

// OpCount reports the number of recorded operations, optionally
// filtered by office. Operator/test helper.
func (d *DB) OpCount(office string) (int, error) {
	var n int
	var err error
	if office == "" {
		err = d.db.QueryRow(`SELECT COUNT(*) FROM ops`).Scan(&n)
	} else {
		err = d.db.QueryRow(`SELECT COUNT(*) FROM ops WHERE office = ?`, office).Scan(&n)
	}
	return n, err
}
