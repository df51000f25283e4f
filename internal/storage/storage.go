// Package storage defines the Repository interface, a contract that any
// storage backend must satisfy to work with this application.
//
// WHY AN INTERFACE?
// ─────────────────
// Handlers (HTTP layer) should not know or care which backend they are
// talking to. By depending only on this interface:
//
//   - Switching backends = pick another implementation in main.go.
//     Zero handler changes.
//
//   - Writing tests = pass a fake/mock that satisfies the interface.
//     No real database needed for unit tests.
//
// Outcomes are (value, error) pairs. The only domain failures a backend
// may report are the two sentinel errors below; anything else is an
// infrastructure fault (network, disk, SQL) and is wrapped with %w.
package storage

import (
	"context"
	"errors"

	"github.com/aanand-mishra/persons-api/internal/types"
)

// Domain failures. Compare with errors.Is.
var (
	// ErrPersonAlreadyExists is returned by Create when an entry already
	// lives under the given identifier.
	ErrPersonAlreadyExists = errors.New("person already exists")

	// ErrPersonDoesNotExist is returned by Update and Delete when no entry
	// lives under the given identifier.
	ErrPersonDoesNotExist = errors.New("person does not exist")
)

//go:generate mockgen -source=storage.go -destination=mocks/mock_storage.go -package=mocks -exclude_interfaces=Pinger,Closer

// Repository is the storage contract for Person values.
// Every operation is atomic with respect to the single key it touches.
type Repository interface {
	// Create stores person under person.ID.
	// Fails with ErrPersonAlreadyExists if the ID is taken.
	Create(ctx context.Context, person types.Person) (types.CreateResult, error)

	// Read looks a person up by ID. Absence is reported as found == false,
	// never as an error.
	Read(ctx context.Context, id types.PersonID) (person types.Person, found bool, err error)

	// Update replaces the stored value under person.ID (full replace, not
	// patch). Fails with ErrPersonDoesNotExist if nothing is stored there.
	Update(ctx context.Context, person types.Person) (types.UpdateResult, error)

	// Delete removes the entry under id.
	// Fails with ErrPersonDoesNotExist if nothing is stored there.
	Delete(ctx context.Context, id types.PersonID) (types.DeleteResult, error)

	// All returns every stored person in unspecified order.
	// Returns an empty slice (not nil) when the store is empty.
	All(ctx context.Context) ([]types.Person, error)
}

// Pinger is implemented by backends that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Closer is implemented by backends holding connections or files.
type Closer interface {
	Close() error
}
