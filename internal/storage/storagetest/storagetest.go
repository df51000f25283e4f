// Package storagetest holds the behavioural contract every
// storage.Repository implementation must honour, written once as a
// testify suite and run by each backend's own tests.
//
//	func TestMemoryRepository(t *testing.T) {
//		suite.Run(t, &storagetest.RepositorySuite{
//			NewRepository: func(t *testing.T) storage.Repository { return memory.New() },
//		})
//	}
package storagetest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"github.com/aanand-mishra/persons-api/internal/storage"
	"github.com/aanand-mishra/persons-api/internal/types"
)

// RepositorySuite runs the repository contract against the store returned
// by NewRepository. NewRepository is called before every test and must
// return an empty store.
type RepositorySuite struct {
	suite.Suite
	NewRepository func(t *testing.T) storage.Repository

	repo storage.Repository
	ctx  context.Context
}

func (s *RepositorySuite) SetupTest() {
	s.ctx = context.Background()
	s.repo = s.NewRepository(s.T())
}

// NewPerson returns a Person with a fresh identity and recognisable fields.
func NewPerson(first, last string) types.Person {
	return types.Person{
		ID:        uuid.New(),
		FirstName: first,
		LastName:  last,
		StudentID: "S-" + first,
		Gender:    "F",
	}
}

func (s *RepositorySuite) mustCreate(p types.Person) {
	res, err := s.repo.Create(s.ctx, p)
	s.Require().NoError(err)
	s.Require().Equal(p.ID, res.ID)
}

// TestCreateAndRead verifies the create → read round trip.
func (s *RepositorySuite) TestCreateAndRead() {
	s.Run("read returns the created person", func() {
		p := NewPerson("Ada", "Lovelace")
		s.mustCreate(p)

		found, ok, err := s.repo.Read(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Require().True(ok)
		s.Equal(p, found)
	})

	s.Run("read of an unknown id is not found, not an error", func() {
		_, ok, err := s.repo.Read(s.ctx, uuid.New())
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("create rejects a taken id", func() {
		p := NewPerson("Grace", "Hopper")
		s.mustCreate(p)

		dup := NewPerson("Someone", "Else")
		dup.ID = p.ID
		_, err := s.repo.Create(s.ctx, dup)
		s.Require().ErrorIs(err, storage.ErrPersonAlreadyExists)

		stored, ok, err := s.repo.Read(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Require().True(ok)
		s.Equal(p, stored, "losing create must not overwrite the stored value")
	})
}

// TestUpdate verifies full-replace semantics and the miss case.
func (s *RepositorySuite) TestUpdate() {
	s.Run("replaces the stored value under the same id", func() {
		p := NewPerson("Alan", "Turing")
		s.mustCreate(p)

		next := p
		next.LastName = "Mathison-Turing"
		res, err := s.repo.Update(s.ctx, next)
		s.Require().NoError(err)
		s.Equal(next, res.Person)

		stored, ok, err := s.repo.Read(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Require().True(ok)
		s.Equal(next, stored)
	})

	s.Run("returns ErrPersonDoesNotExist for an unknown id", func() {
		_, err := s.repo.Update(s.ctx, NewPerson("Nobody", "Here"))
		s.Require().ErrorIs(err, storage.ErrPersonDoesNotExist)
	})

	s.Run("does not create an entry on a miss", func() {
		p := NewPerson("Ghost", "Writer")
		_, err := s.repo.Update(s.ctx, p)
		s.Require().ErrorIs(err, storage.ErrPersonDoesNotExist)

		_, ok, err := s.repo.Read(s.ctx, p.ID)
		s.Require().NoError(err)
		s.False(ok)
	})
}

// TestDelete verifies removal and that misses are always not-found.
func (s *RepositorySuite) TestDelete() {
	s.Run("removes the entry and returns its id", func() {
		p := NewPerson("Katherine", "Johnson")
		s.mustCreate(p)

		res, err := s.repo.Delete(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(p.ID, res.RemovedID)

		_, ok, err := s.repo.Read(s.ctx, p.ID)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("unknown id is ErrPersonDoesNotExist every time", func() {
		id := uuid.New()
		for range 3 {
			_, err := s.repo.Delete(s.ctx, id)
			s.Require().ErrorIs(err, storage.ErrPersonDoesNotExist)
		}
	})

	s.Run("second delete of the same id misses", func() {
		p := NewPerson("Hedy", "Lamarr")
		s.mustCreate(p)

		_, err := s.repo.Delete(s.ctx, p.ID)
		s.Require().NoError(err)
		_, err = s.repo.Delete(s.ctx, p.ID)
		s.Require().ErrorIs(err, storage.ErrPersonDoesNotExist)
	})
}

// TestAll verifies listing.
func (s *RepositorySuite) TestAll() {
	s.Run("empty store lists an empty, non-nil slice", func() {
		all, err := s.repo.All(s.ctx)
		s.Require().NoError(err)
		s.NotNil(all)
		s.Empty(all)
	})

	s.Run("lists every stored person", func() {
		want := []types.Person{
			NewPerson("Ada", "Lovelace"),
			NewPerson("Grace", "Hopper"),
			NewPerson("Barbara", "Liskov"),
		}
		for _, p := range want {
			s.mustCreate(p)
		}

		all, err := s.repo.All(s.ctx)
		s.Require().NoError(err)
		s.ElementsMatch(want, all)
	})
}

// TestConcurrentCreateSameID verifies that exactly one of many concurrent
// creates under one forced id wins.
func (s *RepositorySuite) TestConcurrentCreateSameID() {
	const goroutines = 16
	id := uuid.New()

	var successes, conflicts, others atomic.Int32
	var g errgroup.Group
	for i := range goroutines {
		g.Go(func() error {
			p := NewPerson("Racer", "No"+string(rune('A'+i)))
			p.ID = id
			_, err := s.repo.Create(s.ctx, p)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, storage.ErrPersonAlreadyExists):
				conflicts.Add(1)
			default:
				others.Add(1)
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	s.Equal(int32(1), successes.Load())
	s.Equal(int32(goroutines-1), conflicts.Load())
	s.Zero(others.Load())
}

// TestConcurrentUpdateAndDelete races updates against a delete on one key.
// The delete must win exactly once and no update may bring the entry back.
func (s *RepositorySuite) TestConcurrentUpdateAndDelete() {
	p := NewPerson("Shared", "Key")
	s.mustCreate(p)

	const writers = 8
	written := make([]types.Person, writers)
	var deletes atomic.Int32
	var g errgroup.Group
	for i := range writers {
		written[i] = p
		written[i].LastName = "Writer" + string(rune('A'+i))
		g.Go(func() error {
			_, err := s.repo.Update(s.ctx, written[i])
			if err != nil && !errors.Is(err, storage.ErrPersonDoesNotExist) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		_, err := s.repo.Delete(s.ctx, p.ID)
		if err == nil {
			deletes.Add(1)
		}
		return nil
	})
	s.Require().NoError(g.Wait())
	s.Equal(int32(1), deletes.Load())

	_, ok, err := s.repo.Read(s.ctx, p.ID)
	s.Require().NoError(err)
	s.False(ok, "update must never resurrect a deleted entry")
}
