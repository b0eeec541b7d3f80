package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	StatusUploaded = "UPLOADED"
	StatusFailed   = "FAILED"
	StatusDeleted  = "DELETED"
)

const schema = `
CREATE TABLE IF NOT EXISTS upload_log (
	object_key TEXT PRIMARY KEY,
	local_path TEXT NOT NULL,
	root TEXT NOT NULL,
	status TEXT NOT NULL,
	size INTEGER DEFAULT 0,
	attempts INTEGER DEFAULT 0,
	last_error TEXT DEFAULT '',
	updated_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_upload_log_updated ON upload_log(updated_at);
`

// Record is one row of the upload ledger.
type Record struct {
	ObjectKey string    `json:"objectKey"`
	LocalPath string    `json:"localPath"`
	Root      string    `json:"root"`
	Status    string    `json:"status"`
	Size      int64     `json:"size"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"lastError,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DB is the sqlite-backed upload ledger. It keeps the latest outcome per object key.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", dbPath, err)
	}
	// Timer callbacks and live handlers write concurrently; sqlite wants one writer.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &DB{conn: conn, now: time.Now}, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) RecordUpload(key, localPath, root string, size int64) error {
	_, err := d.conn.Exec(`
		INSERT INTO upload_log (object_key, local_path, root, status, size, attempts, last_error, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, '', ?)
		ON CONFLICT(object_key) DO UPDATE SET
			local_path = excluded.local_path,
			root = excluded.root,
			status = excluded.status,
			size = excluded.size,
			attempts = upload_log.attempts + 1,
			last_error = '',
			updated_at = excluded.updated_at
	`, key, localPath, root, StatusUploaded, size, d.now().UTC())
	if err != nil {
		return fmt.Errorf("record upload %s: %w", key, err)
	}
	return nil
}

func (d *DB) RecordFailure(key, localPath, root string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := d.conn.Exec(`
		INSERT INTO upload_log (object_key, local_path, root, status, size, attempts, last_error, updated_at)
		VALUES (?, ?, ?, ?, 0, 1, ?, ?)
		ON CONFLICT(object_key) DO UPDATE SET
			local_path = excluded.local_path,
			root = excluded.root,
			status = excluded.status,
			attempts = upload_log.attempts + 1,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at
	`, key, localPath, root, StatusFailed, msg, d.now().UTC())
	if err != nil {
		return fmt.Errorf("record failure %s: %w", key, err)
	}
	return nil
}

func (d *DB) RecordDelete(key, localPath, root string) error {
	_, err := d.conn.Exec(`
		INSERT INTO upload_log (object_key, local_path, root, status, size, attempts, last_error, updated_at)
		VALUES (?, ?, ?, ?, 0, 0, '', ?)
		ON CONFLICT(object_key) DO UPDATE SET
			status = excluded.status,
			last_error = '',
			updated_at = excluded.updated_at
	`, key, localPath, root, StatusDeleted, d.now().UTC())
	if err != nil {
		return fmt.Errorf("record delete %s: %w", key, err)
	}
	return nil
}

// Recent returns up to limit rows, newest first.
func (d *DB) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.conn.Query(`
		SELECT object_key, local_path, root, status, size, attempts, last_error, updated_at
		FROM upload_log ORDER BY updated_at DESC, object_key ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ObjectKey, &r.LocalPath, &r.Root, &r.Status, &r.Size, &r.Attempts, &r.LastError, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Reset forgets the rows for localPath, or every row when localPath is empty.
func (d *DB) Reset(localPath string) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if localPath != "" {
		res, err = d.conn.Exec("DELETE FROM upload_log WHERE local_path = ?", localPath)
	} else {
		res, err = d.conn.Exec("DELETE FROM upload_log")
	}
	if err != nil {
		return 0, fmt.Errorf("failed to reset history: %w", err)
	}
	return res.RowsAffected()
}
