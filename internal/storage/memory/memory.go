// Package memory provides a volatile, concurrency-safe implementation of
// storage.Repository. Nothing survives a process restart.
package memory

import (
	"context"
	"sync"

	"github.com/aanand-mishra/persons-api/internal/storage"
	"github.com/aanand-mishra/persons-api/internal/types"
)

// Memory keeps persons in a sync.Map keyed by types.PersonID.
//
// sync.Map gives us the indivisible check-then-act primitives the
// repository contract needs without a global lock:
//
//	Create → LoadOrStore      (insert only if absent)
//	Update → CompareAndSwap   (replace only what we last saw)
//	Delete → LoadAndDelete    (remove only if present)
type Memory struct {
	m sync.Map
}

var _ storage.Repository = (*Memory)(nil)

// New returns an empty store, optionally seeded with persons.
func New(seed ...types.Person) *Memory {
	s := &Memory{}
	for _, p := range seed {
		s.m.Store(p.ID, p)
	}
	return s
}

// Create stores person unless its ID is already taken, in which case
// storage.ErrPersonAlreadyExists is returned and the stored value is kept.
func (s *Memory) Create(_ context.Context, person types.Person) (types.CreateResult, error) {
	if _, loaded := s.m.LoadOrStore(person.ID, person); loaded {
		return types.CreateResult{}, storage.ErrPersonAlreadyExists
	}
	return types.CreateResult{ID: person.ID}, nil
}

// Read returns the person under id. found is false when there is none.
func (s *Memory) Read(_ context.Context, id types.PersonID) (types.Person, bool, error) {
	value, ok := s.m.Load(id)
	if !ok {
		return types.Person{}, false, nil
	}
	return value.(types.Person), true, nil
}

// Update replaces the person stored under person.ID.
// Returns storage.ErrPersonDoesNotExist if nothing is stored there.
func (s *Memory) Update(_ context.Context, person types.Person) (types.UpdateResult, error) {
	for {
		old, ok := s.m.Load(person.ID)
		if !ok {
			return types.UpdateResult{}, storage.ErrPersonDoesNotExist
		}
		// A concurrent update or delete between Load and here makes the
		// swap fail; go around and look again.
		if s.m.CompareAndSwap(person.ID, old, person) {
			return types.UpdateResult{Person: person}, nil
		}
	}
}

// Delete removes the person under id.
// Returns storage.ErrPersonDoesNotExist if nothing is stored there.
func (s *Memory) Delete(_ context.Context, id types.PersonID) (types.DeleteResult, error) {
	if _, loaded := s.m.LoadAndDelete(id); !loaded {
		return types.DeleteResult{}, storage.ErrPersonDoesNotExist
	}
	return types.DeleteResult{RemovedID: id}, nil
}

// All returns a snapshot of every stored person. Entries written while
// the walk is in progress may or may not be included.
func (s *Memory) All(_ context.Context) ([]types.Person, error) {
	persons := make([]types.Person, 0)
	s.m.Range(func(_, value any) bool {
		persons = append(persons, value.(types.Person))
		return true
	})
	return persons, nil
}
