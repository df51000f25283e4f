// Package sqlite provides a SQLite-backed implementation of the
// storage.Repository interface using Go's standard database/sql package.
//
// WHY SQLite?
// ───────────
// SQLite stores everything in a single file on disk. There is no
// network, no separate server process, and no installation beyond the
// driver. It is the durable option for a single instance of the API.
//
// Importing go-sqlite3 registers the "sqlite3" driver with database/sql;
// its Error type is also used to recognise constraint violations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/aanand-mishra/persons-api/internal/storage"
	"github.com/aanand-mishra/persons-api/internal/types"
)

// SQLite is the concrete implementation of storage.Repository.
// It holds a *sql.DB which is a connection pool managed by database/sql.
type SQLite struct {
	Db *sql.DB
}

var _ storage.Repository = (*SQLite)(nil)

// New opens the SQLite database at path, creates the persons table if it
// does not already exist, and returns a ready-to-use *SQLite.
func New(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite.New: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open db: %w", err)
	}

	// SQLite allows one writer at a time. A single pooled connection turns
	// concurrent writers into a queue instead of SQLITE_BUSY errors, and
	// keeps every statement on the same database when path is ":memory:".
	db.SetMaxOpenConns(1)

	// CREATE TABLE IF NOT EXISTS is idempotent and safe to run on every
	// startup. The PRIMARY KEY on id is what makes a duplicate create fail.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS persons (
			id         TEXT PRIMARY KEY,
			first_name TEXT NOT NULL,
			last_name  TEXT NOT NULL,
			student_id TEXT NOT NULL,
			gender     TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.New: create table: %w", err)
	}

	return &SQLite{Db: db}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Create inserts a new row. A primary-key collision is reported as
// storage.ErrPersonAlreadyExists; the ? placeholders keep user input out of
// the SQL text.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) Create(ctx context.Context, person types.Person) (types.CreateResult, error) {
	_, err := s.Db.ExecContext(ctx,
		"INSERT INTO persons (id, first_name, last_name, student_id, gender) VALUES (?, ?, ?, ?, ?)",
		person.ID.String(), person.FirstName, person.LastName, person.StudentID, person.Gender,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return types.CreateResult{}, storage.ErrPersonAlreadyExists
		}
		return types.CreateResult{}, fmt.Errorf("Create: exec: %w", err)
	}

	return types.CreateResult{ID: person.ID}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Read fetches exactly one row matched by primary key.
// sql.ErrNoRows is the sentinel for "nothing matched"; it becomes
// found == false rather than an error.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) Read(ctx context.Context, id types.PersonID) (types.Person, bool, error) {
	row := s.Db.QueryRowContext(ctx,
		"SELECT id, first_name, last_name, student_id, gender FROM persons WHERE id = ? LIMIT 1",
		id.String(),
	)

	person, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Person{}, false, nil
	}
	if err != nil {
		return types.Person{}, false, fmt.Errorf("Read: scan: %w", err)
	}

	return person, true, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Update replaces every column of an existing row. Zero affected rows
// means there was nothing to update.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) Update(ctx context.Context, person types.Person) (types.UpdateResult, error) {
	result, err := s.Db.ExecContext(ctx,
		"UPDATE persons SET first_name = ?, last_name = ?, student_id = ?, gender = ? WHERE id = ?",
		person.FirstName, person.LastName, person.StudentID, person.Gender, person.ID.String(),
	)
	if err != nil {
		return types.UpdateResult{}, fmt.Errorf("Update: exec: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return types.UpdateResult{}, fmt.Errorf("Update: rows affected: %w", err)
	}
	if affected == 0 {
		return types.UpdateResult{}, storage.ErrPersonDoesNotExist
	}

	return types.UpdateResult{Person: person}, nil
}

// Delete removes a row by primary key.
func (s *SQLite) Delete(ctx context.Context, id types.PersonID) (types.DeleteResult, error) {
	result, err := s.Db.ExecContext(ctx, "DELETE FROM persons WHERE id = ?", id.String())
	if err != nil {
		return types.DeleteResult{}, fmt.Errorf("Delete: exec: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return types.DeleteResult{}, fmt.Errorf("Delete: rows affected: %w", err)
	}
	if affected == 0 {
		return types.DeleteResult{}, storage.ErrPersonDoesNotExist
	}

	return types.DeleteResult{RemovedID: id}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// All returns every row as a slice.
// Always defer rows.Close() to release the database connection, and
// check rows.Err() after the loop for errors hit during iteration.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) All(ctx context.Context) ([]types.Person, error) {
	rows, err := s.Db.QueryContext(ctx,
		"SELECT id, first_name, last_name, student_id, gender FROM persons",
	)
	if err != nil {
		return nil, fmt.Errorf("All: query: %w", err)
	}
	defer rows.Close()

	// Returning [] instead of null in JSON is better API behaviour.
	persons := make([]types.Person, 0)
	for rows.Next() {
		person, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("All: scan row: %w", err)
		}
		persons = append(persons, person)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("All: rows iteration: %w", err)
	}

	return persons, nil
}

// Ping checks that the database file is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.Db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *SQLite) Close() error {
	return s.Db.Close()
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanPerson reads one row; the column order must match the SELECT lists above.
func scanPerson(row scanner) (types.Person, error) {
	var (
		person types.Person
		rawID  string
	)
	if err := row.Scan(&rawID, &person.FirstName, &person.LastName, &person.StudentID, &person.Gender); err != nil {
		return types.Person{}, err
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return types.Person{}, fmt.Errorf("parse id %q: %w", rawID, err)
	}
	person.ID = id

	return person, nil
}
