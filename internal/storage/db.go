package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"quoteintake/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS intake_runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  sessionId TEXT NOT NULL,
  emailId INTEGER,
  fileName TEXT NOT NULL,
  kind TEXT NOT NULL,
  outcome TEXT NOT NULL,
  extractedCount INTEGER NOT NULL DEFAULT 0,
  confidence TEXT,
  elapsedMs INTEGER NOT NULL DEFAULT 0,
  error TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(emailId) REFERENCES emails(id)
);
CREATE INDEX IF NOT EXISTS idx_intake_runs_session ON intake_runs(sessionId);

CREATE TABLE IF NOT EXISTS promoted_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  sessionId TEXT NOT NULL,
  position INTEGER NOT NULL,
  itemId TEXT NOT NULL,
  name TEXT NOT NULL,
  unitPrice REAL NOT NULL,
  expiryLabel TEXT,
  code TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_promoted_items_session ON promoted_items(sessionId);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) UpsertEmail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.EmailRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO emails (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.EmailRow{}, err
	}

	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, errors.New("failed to upsert email")
	}
	return *row, nil
}

const emailColumns = `id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef`

func scanEmail(scan func(dest ...any) error) (internal.EmailRow, error) {
	var row internal.EmailRow
	var subject, sender, receivedAt sql.NullString
	err := scan(&row.ID, &row.Provider, &row.MessageID, &subject, &sender, &receivedAt, &row.Hash, &row.Status, &row.RawRef)
	row.Subject = subject.String
	row.Sender = sender.String
	row.ReceivedAt = receivedAt.String
	return row, err
}

func (d *DB) GetEmailByProviderMessageID(provider, messageID string) (*internal.EmailRow, error) {
	row, err := scanEmail(d.conn.QueryRow(`SELECT `+emailColumns+` FROM emails WHERE provider = ? AND messageId = ?`, provider, messageID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) GetEmailByID(id int) (*internal.EmailRow, error) {
	row, err := scanEmail(d.conn.QueryRow(`SELECT `+emailColumns+` FROM emails WHERE id = ?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) MustEmailByID(id int) (internal.EmailRow, error) {
	row, err := d.GetEmailByID(id)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, fmt.Errorf("email not found: id=%d", id)
	}
	return *row, nil
}

func (d *DB) ListEmailsByStatus(status string, limit int) ([]internal.EmailRow, error) {
	rows, err := d.conn.Query(`SELECT `+emailColumns+` FROM emails WHERE status = ? ORDER BY receivedAt ASC, id ASC LIMIT ?`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.EmailRow
	for rows.Next() {
		row, err := scanEmail(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateEmailStatus(emailID int, status string) error {
	_, err := d.conn.Exec(`UPDATE emails SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, emailID)
	return err
}

// RecordRun stores one ingestion attempt.
func (d *DB) RecordRun(ctx context.Context, run internal.IntakeRun) error {
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO intake_runs (traceId, sessionId, emailId, fileName, kind, outcome, extractedCount, confidence, elapsedMs, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, run.TraceID, run.SessionID, run.EmailID, run.FileName, run.Kind, run.Outcome, run.ExtractedCount, nullable(run.Confidence), run.ElapsedMs, nullable(run.Error))
	return err
}

// LinkRunsToEmail attributes every run of a session to the email its input
// came from.
func (d *DB) LinkRunsToEmail(ctx context.Context, sessionID string, emailID int) error {
	_, err := d.conn.ExecContext(ctx, `UPDATE intake_runs SET emailId = ? WHERE sessionId = ?`, emailID, sessionID)
	return err
}

// ListRuns returns the newest runs first.
func (d *DB) ListRuns(ctx context.Context, limit int) ([]internal.IntakeRun, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT id, traceId, sessionId, emailId, fileName, kind, outcome, extractedCount, confidence, elapsedMs, error, createdAt
FROM intake_runs ORDER BY id DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.IntakeRun
	for rows.Next() {
		var run internal.IntakeRun
		var emailID sql.NullInt64
		var confidence, runErr sql.NullString
		if err := rows.Scan(
			&run.ID, &run.TraceID, &run.SessionID, &emailID, &run.FileName, &run.Kind, &run.Outcome,
			&run.ExtractedCount, &confidence, &run.ElapsedMs, &runErr, &run.CreatedAt,
		); err != nil {
			return nil, err
		}
		if emailID.Valid {
			id := int(emailID.Int64)
			run.EmailID = &id
		}
		run.Confidence = confidence.String
		run.Error = runErr.String
		out = append(out, run)
	}
	return out, rows.Err()
}

// OnIngested promotes confirmed items into order lines. A repeated confirm
// for the same session replaces the earlier lines.
func (d *DB) OnIngested(ctx context.Context, sessionID string, items []internal.CandidateItem) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM promoted_items WHERE sessionId = ?`, sessionID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO promoted_items (sessionId, position, itemId, name, unitPrice, expiryLabel, code)
VALUES (?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, it := range items {
		if _, err := stmt.ExecContext(ctx, sessionID, i, it.ID, it.Name, it.UnitPrice, it.ExpiryLabel, it.Code); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *DB) ListPromoted(ctx context.Context, sessionID string) ([]internal.CandidateItem, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT itemId, name, unitPrice, expiryLabel, code
FROM promoted_items WHERE sessionId = ? ORDER BY position ASC
`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []internal.CandidateItem{}
	for rows.Next() {
		var it internal.CandidateItem
		if err := rows.Scan(&it.ID, &it.Name, &it.UnitPrice, &it.ExpiryLabel, &it.Code); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
