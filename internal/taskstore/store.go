// Package taskstore implements the task store on SQLite.
package taskstore

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/egret-dev/egret/internal/apperr"
	"github.com/egret-dev/egret/internal/models"
	"github.com/egret-dev/egret/internal/tasks"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS tasks (
	uuid        TEXT PRIMARY KEY,
	local_id    INTEGER NOT NULL DEFAULT 0,
	description TEXT NOT NULL,
	project     TEXT NOT NULL DEFAULT '',
	tags        TEXT NOT NULL DEFAULT '[]',
	status      TEXT NOT NULL DEFAULT 'pending',
	modified    DATETIME NOT NULL,
	attributes  TEXT NOT NULL DEFAULT '{}',
	depends     TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS annotations (
	task_uuid TEXT NOT NULL REFERENCES tasks(uuid) ON DELETE CASCADE,
	entry     DATETIME NOT NULL,
	text      TEXT NOT NULL,
	UNIQUE(task_uuid, entry)
);

CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project);
CREATE INDEX IF NOT EXISTS idx_tasks_local_id ON tasks(local_id);
`

// DB wraps a sql.DB with task store operations.
type DB struct {
	conn *sql.DB
}

// Verify *DB satisfies the store contract at compile time.
var _ tasks.Store = (*DB)(nil)

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("taskstore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("taskstore: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("taskstore: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func newUUID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// Create adds a pending task, assigning the next free local id.
func (db *DB) Create(description, project string, tags []string, attributes map[string]string) (*models.TaskRecord, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("taskstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var maxID sql.NullInt64
	if err := tx.QueryRow(`SELECT MAX(local_id) FROM tasks`).Scan(&maxID); err != nil {
		return nil, fmt.Errorf("taskstore: next local id: %w", err)
	}

	rec := &models.TaskRecord{
		UUID:        newUUID(),
		LocalID:     int(maxID.Int64) + 1,
		Description: description,
		Project:     project,
		Tags:        append([]string(nil), tags...),
		Status:      models.StatusPending,
		Modified:    time.Now(),
		Attributes:  attributes,
	}
	if rec.Attributes == nil {
		rec.Attributes = make(map[string]string)
	}

	tagsJSON, _ := json.Marshal(rec.Tags)
	attrsJSON, _ := json.Marshal(rec.Attributes)
	_, err = tx.Exec(`
		INSERT INTO tasks (uuid, local_id, description, project, tags, status, modified, attributes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.UUID, rec.LocalID, rec.Description, rec.Project, string(tagsJSON), rec.Status, rec.Modified, string(attrsJSON))
	if err != nil {
		return nil, fmt.Errorf("taskstore: insert task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("taskstore: commit: %w", err)
	}
	return rec, nil
}

const selectCols = `uuid, local_id, description, project, tags, status, modified, attributes, depends`

func (db *DB) scanRecord(row *sql.Row) (*models.TaskRecord, error) {
	var (
		rec       models.TaskRecord
		tagsJSON  string
		attrsJSON string
		depsJSON  string
	)
	err := row.Scan(&rec.UUID, &rec.LocalID, &rec.Description, &rec.Project,
		&tagsJSON, &rec.Status, &rec.Modified, &attrsJSON, &depsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("taskstore: scan task: %w", err)
	}
	if err := unmarshalRecord(&rec, tagsJSON, attrsJSON, depsJSON); err != nil {
		return nil, err
	}
	if err := db.loadAnnotations(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func unmarshalRecord(rec *models.TaskRecord, tagsJSON, attrsJSON, depsJSON string) error {
	if err := json.Unmarshal([]byte(tagsJSON), &rec.Tags); err != nil {
		return fmt.Errorf("taskstore: decode tags: %w", err)
	}
	if err := json.Unmarshal([]byte(attrsJSON), &rec.Attributes); err != nil {
		return fmt.Errorf("taskstore: decode attributes: %w", err)
	}
	if err := json.Unmarshal([]byte(depsJSON), &rec.DependsOn); err != nil {
		return fmt.Errorf("taskstore: decode depends: %w", err)
	}
	return nil
}

func (db *DB) loadAnnotations(rec *models.TaskRecord) error {
	rows, err := db.conn.Query(`SELECT entry, text FROM annotations WHERE task_uuid = ? ORDER BY entry`, rec.UUID)
	if err != nil {
		return fmt.Errorf("taskstore: load annotations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a models.TaskAnnotation
		if err := rows.Scan(&a.Entry, &a.Text); err != nil {
			return fmt.Errorf("taskstore: scan annotation: %w", err)
		}
		rec.Annotations = append(rec.Annotations, a)
	}
	return rows.Err()
}

// GetByUUID returns the record with the given identifier.
func (db *DB) GetByUUID(uuid string) (*models.TaskRecord, error) {
	row := db.conn.QueryRow(`SELECT `+selectCols+` FROM tasks WHERE uuid = ?`, uuid)
	return db.scanRecord(row)
}

// GetByDescription returns a record whose description matches exactly,
// preferring pending records over completed or deleted ones.
func (db *DB) GetByDescription(description string) (*models.TaskRecord, error) {
	row := db.conn.QueryRow(`
		SELECT `+selectCols+` FROM tasks WHERE description = ?
		ORDER BY CASE status WHEN 'pending' THEN 0 ELSE 1 END, modified DESC
		LIMIT 1
	`, description)
	return db.scanRecord(row)
}

// Filter returns every record belonging to a project.
func (db *DB) Filter(project string) ([]*models.TaskRecord, error) {
	rows, err := db.conn.Query(`SELECT `+selectCols+` FROM tasks WHERE project = ? ORDER BY local_id, modified`, project)
	if err != nil {
		return nil, fmt.Errorf("taskstore: filter: %w", err)
	}
	defer rows.Close()

	var out []*models.TaskRecord
	for rows.Next() {
		var (
			rec       models.TaskRecord
			tagsJSON  string
			attrsJSON string
			depsJSON  string
		)
		if err := rows.Scan(&rec.UUID, &rec.LocalID, &rec.Description, &rec.Project,
			&tagsJSON, &rec.Status, &rec.Modified, &attrsJSON, &depsJSON); err != nil {
			return nil, fmt.Errorf("taskstore: scan task: %w", err)
		}
		if err := unmarshalRecord(&rec, tagsJSON, attrsJSON, depsJSON); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, rec := range out {
		if err := db.loadAnnotations(rec); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// MarkDone completes a task. The local id is released: completed
// records report id zero.
func (db *DB) MarkDone(uuid string) error {
	res, err := db.conn.Exec(`
		UPDATE tasks SET status = ?, local_id = 0, modified = ? WHERE uuid = ?
	`, models.StatusCompleted, time.Now(), uuid)
	if err != nil {
		return fmt.Errorf("taskstore: mark done: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// Annotate attaches a timestamped note to a task. Re-adding an
// existing (uuid, timestamp) pair is a no-op.
func (db *DB) Annotate(uuid string, a models.TaskAnnotation) error {
	var exists int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM tasks WHERE uuid = ?`, uuid).Scan(&exists)
	if err != nil {
		return fmt.Errorf("taskstore: annotate lookup: %w", err)
	}
	if exists == 0 {
		return apperr.ErrNotFound
	}
	_, err = db.conn.Exec(`
		INSERT OR IGNORE INTO annotations (task_uuid, entry, text) VALUES (?, ?, ?)
	`, uuid, a.Entry, a.Text)
	if err != nil {
		return fmt.Errorf("taskstore: annotate: %w", err)
	}
	return nil
}
