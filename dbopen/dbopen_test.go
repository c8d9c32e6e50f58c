package dbopen

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func TestOpenAppliesPragmas(t *testing.T) {
	// WHAT: Open sets busy_timeout and foreign_keys on the connection.
	// WHY: The cache store relies on these for concurrent sweep/read safety.
	db := OpenMemory(t, WithBusyTimeout(5000))

	var timeout int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("query busy_timeout: %v", err)
	}
	if timeout != 5000 {
		t.Errorf("busy_timeout: got %d, want 5000", timeout)
	}

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys: got %d, want 1", fk)
	}
}

func TestOpenWithSchema(t *testing.T) {
	// WHAT: WithSchema executes DDL at open time.
	// WHY: The cache store passes its schema through this option.
	db := OpenMemory(t, WithSchema(`CREATE TABLE probe (id INTEGER PRIMARY KEY)`))

	if _, err := db.Exec(`INSERT INTO probe (id) VALUES (1)`); err != nil {
		t.Fatalf("insert into schema table: %v", err)
	}
}

func TestOpenWithMkdirAll(t *testing.T) {
	// WHAT: WithMkdirAll creates missing parent directories.
	// WHY: First run on a fresh machine has no cache directory yet.
	path := filepath.Join(t.TempDir(), "nested", "dir", "cache.db")
	db, err := Open(path, WithMkdirAll())
	if err != nil {
		t.Fatalf("open with mkdir: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		t.Errorf("ping: %v", err)
	}
}

func TestRunTxCommits(t *testing.T) {
	// WHAT: RunTx commits on success and rolls back on error.
	// WHY: Selector-outcome batches must land atomically.
	db := OpenMemory(t, WithSchema(`CREATE TABLE n (v INTEGER)`))
	ctx := context.Background()

	if err := RunTx(ctx, db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO n (v) VALUES (1)`)
		return err
	}); err != nil {
		t.Fatalf("RunTx: %v", err)
	}

	errBoom := RunTx(ctx, db, func(tx *sql.Tx) error {
		tx.Exec(`INSERT INTO n (v) VALUES (2)`)
		return sql.ErrTxDone
	})
	if errBoom == nil {
		t.Fatal("RunTx should propagate fn error")
	}

	var count int
	db.QueryRow(`SELECT COUNT(*) FROM n`).Scan(&count)
	if count != 1 {
		t.Errorf("rows after rollback: got %d, want 1", count)
	}
}

func TestIsBusy(t *testing.T) {
	// WHAT: IsBusy matches the lock-error shapes the driver emits.
	if IsBusy(nil) {
		t.Error("nil should not be busy")
	}
	if !IsBusy(errString("database is locked (5) (SQLITE_BUSY)")) {
		t.Error("SQLITE_BUSY not recognised")
	}
	if IsBusy(errString("no such table: products")) {
		t.Error("unrelated error flagged as busy")
	}
}

type errString string

func (e errString) Error() string { return string(e) }
