package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

func init() {
	// sqlx only knows the placeholder style of drivers it ships a table for.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// NewSQLite opens the embedded database at path with foreign keys enforced.
//
// The pool is pinned to a single connection: the store assumes one writer, and an
// in-memory database only lives as long as the connection that created it.
func NewSQLite(path string) (*sqlx.DB, error) {
	if path == "" {
		path = "gradestore.db"
	}

	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !os.IsExist(err) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func sqliteDSN(path string) string {
	pragmas := "_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	if path != MemoryPath {
		pragmas += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	return path + sep + pragmas
}
