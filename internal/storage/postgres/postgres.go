// Package postgres provides a PostgreSQL-backed storage.Repository on a
// pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aanand-mishra/persons-api/internal/storage"
	"github.com/aanand-mishra/persons-api/internal/types"
)

const createTable = `
	CREATE TABLE IF NOT EXISTS persons (
		id         UUID PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name  TEXT NOT NULL,
		student_id TEXT NOT NULL,
		gender     TEXT NOT NULL
	)
`

// Postgres persists persons in a single table keyed by UUID.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ storage.Repository = (*Postgres)(nil)

// Options tunes the connection pool. Zero values keep pgx defaults.
type Options struct {
	MaxConns       int32
	ConnectTimeout time.Duration
}

// New parses databaseURL, opens a pool, pings it and makes sure the
// persons table exists.
func New(ctx context.Context, databaseURL string, opts Options) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse url: %w", err)
	}
	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	if opts.ConnectTimeout > 0 {
		config.ConnConfig.ConnectTimeout = opts.ConnectTimeout
	}
	config.MaxConnIdleTime = 2 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, createTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: create table: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Create relies on ON CONFLICT DO NOTHING so the existence check and the
// insert are one statement; zero inserted rows means the id was taken.
func (p *Postgres) Create(ctx context.Context, person types.Person) (types.CreateResult, error) {
	tag, err := p.pool.Exec(ctx, `
		INSERT INTO persons (id, first_name, last_name, student_id, gender)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, person.ID, person.FirstName, person.LastName, person.StudentID, person.Gender)
	if err != nil {
		return types.CreateResult{}, fmt.Errorf("Create: exec: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.CreateResult{}, storage.ErrPersonAlreadyExists
	}
	return types.CreateResult{ID: person.ID}, nil
}

// Read fetches one row by primary key. pgx.ErrNoRows is reported as
// found == false.
func (p *Postgres) Read(ctx context.Context, id types.PersonID) (types.Person, bool, error) {
	var person types.Person
	err := p.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, student_id, gender
		FROM persons WHERE id = $1
	`, id).Scan(&person.ID, &person.FirstName, &person.LastName, &person.StudentID, &person.Gender)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Person{}, false, nil
	}
	if err != nil {
		return types.Person{}, false, fmt.Errorf("Read: scan: %w", err)
	}
	return person, true, nil
}

// Update rewrites every column of the row under person.ID. Zero affected
// rows means the row is gone: storage.ErrPersonDoesNotExist.
func (p *Postgres) Update(ctx context.Context, person types.Person) (types.UpdateResult, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE persons
		SET first_name = $2, last_name = $3, student_id = $4, gender = $5
		WHERE id = $1
	`, person.ID, person.FirstName, person.LastName, person.StudentID, person.Gender)
	if err != nil {
		return types.UpdateResult{}, fmt.Errorf("Update: exec: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.UpdateResult{}, storage.ErrPersonDoesNotExist
	}
	return types.UpdateResult{Person: person}, nil
}

// Delete removes the row under id; zero affected rows is
// storage.ErrPersonDoesNotExist.
func (p *Postgres) Delete(ctx context.Context, id types.PersonID) (types.DeleteResult, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM persons WHERE id = $1`, id)
	if err != nil {
		return types.DeleteResult{}, fmt.Errorf("Delete: exec: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.DeleteResult{}, storage.ErrPersonDoesNotExist
	}
	return types.DeleteResult{RemovedID: id}, nil
}

// All reads the whole table. An empty table yields an empty, non-nil slice.
func (p *Postgres) All(ctx context.Context) ([]types.Person, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, first_name, last_name, student_id, gender FROM persons
	`)
	if err != nil {
		return nil, fmt.Errorf("All: query: %w", err)
	}

	persons, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.Person, error) {
		var person types.Person
		err := row.Scan(&person.ID, &person.FirstName, &person.LastName, &person.StudentID, &person.Gender)
		return person, err
	})
	if err != nil {
		return nil, fmt.Errorf("All: collect rows: %w", err)
	}
	if persons == nil {
		persons = make([]types.Person, 0)
	}
	return persons, nil
}

// Ping acquires a pooled connection and checks the server answers.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes every connection in the pool. It always returns nil and
// exists to satisfy storage.Closer.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
