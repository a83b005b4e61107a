package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"arclight-go/internal/arclight"
	"arclight-go/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteJournal implements the arclight.Journal interface using SQLite.
type SQLiteJournal struct {
	db   *sql.DB
	path string
}

// NewSQLiteJournal opens the journal at path and migrates it to the latest
// schema. path can be a file path or ":memory:" for an in-memory journal.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating journal: %w", err)
	}
	return &SQLiteJournal{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Operations

func (s *SQLiteJournal) BeginOperation(op *arclight.Operation) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO operations (ref, name, title, address, started_at, state)
		VALUES (?, ?, ?, ?, ?, ?)`,
		op.Ref, op.Name, op.Title, string(op.Address), op.StartedAt.UnixMilli(), op.State.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("creating operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("creating operation: %w", err)
	}
	op.ID = id
	return id, nil
}

func (s *SQLiteJournal) RecordSubmitted(opID int64, rec arclight.SubmittedRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO submitted_records (operation_id, step, kind, record_id, track)
		VALUES (?, ?, ?, ?, ?)`,
		opID, string(rec.Step), string(rec.Kind), string(rec.ID), rec.Track,
	)
	if err != nil {
		return fmt.Errorf("recording submitted record %s: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLiteJournal) FinishOperation(opID int64, state arclight.State, failedStep arclight.Step, opErr error) error {
	var msg string
	if opErr != nil {
		msg = opErr.Error()
	}
	res, err := s.db.Exec(`
		UPDATE operations
		SET finished_at = ?, state = ?, failed_step = ?, error = ?
		WHERE id = ?`,
		time.Now().UnixMilli(), state.String(), string(failedStep), msg, opID,
	)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finishing operation: no operation with id %d", opID)
	}
	return nil
}

func (s *SQLiteJournal) ListOperations(limit int) ([]*arclight.Operation, error) {
	rows, err := s.db.Query(`
		SELECT id, ref, name, title, address, started_at, finished_at, state, failed_step, error
		FROM operations
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*arclight.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("listing operations: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

// FindOperation returns the operation with the given id, or nil if none exists.
func (s *SQLiteJournal) FindOperation(opID int64) (*arclight.Operation, error) {
	row := s.db.QueryRow(`
		SELECT id, ref, name, title, address, started_at, finished_at, state, failed_step, error
		FROM operations
		WHERE id = ?`, opID)
	op, err := scanOperation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding operation: %w", err)
	}
	return op, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOperation(row scanner) (*arclight.Operation, error) {
	var (
		op         arclight.Operation
		address    string
		startedAt  int64
		finishedAt sql.NullInt64
		state      string
		failedStep string
	)
	err := row.Scan(&op.ID, &op.Ref, &op.Name, &op.Title, &address, &startedAt, &finishedAt, &state, &failedStep, &op.Error)
	if err != nil {
		return nil, err
	}
	op.Address = arclight.Address(address)
	op.StartedAt = time.UnixMilli(startedAt)
	if finishedAt.Valid {
		t := time.UnixMilli(finishedAt.Int64)
		op.FinishedAt = &t
	}
	op.State, _ = arclight.ParseState(state)
	op.FailedStep = arclight.Step(failedStep)
	return &op, nil
}

// Submitted records

func (s *SQLiteJournal) ListSubmitted(opID int64) ([]arclight.SubmittedRecord, error) {
	rows, err := s.db.Query(`
		SELECT record_id, kind, step, track
		FROM submitted_records
		WHERE operation_id = ?
		ORDER BY id`, opID)
	if err != nil {
		return nil, fmt.Errorf("listing submitted records: %w", err)
	}
	defer rows.Close()

	var recs []arclight.SubmittedRecord
	for rows.Next() {
		var id, kind, step string
		var rec arclight.SubmittedRecord
		if err := rows.Scan(&id, &kind, &step, &rec.Track); err != nil {
			return nil, fmt.Errorf("listing submitted records: %w", err)
		}
		rec.ID = arclight.RecordID(id)
		rec.Kind = arclight.Kind(kind)
		rec.Step = arclight.Step(step)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing submitted records: %w", err)
	}
	return recs, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteJournal) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteJournal) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteJournal) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteJournal implements arclight.Journal interface
var _ arclight.Journal = (*SQLiteJournal)(nil)
