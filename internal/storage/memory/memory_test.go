package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/aanand-mishra/persons-api/internal/storage"
	"github.com/aanand-mishra/persons-api/internal/storage/storagetest"
)

func TestMemoryRepository(t *testing.T) {
	suite.Run(t, &storagetest.RepositorySuite{
		NewRepository: func(*testing.T) storage.Repository { return New() },
	})
}

func TestNewSeedsStore(t *testing.T) {
	ada := storagetest.NewPerson("Ada", "Lovelace")
	s := New(ada)

	got, ok, err := s.Read(context.Background(), ada.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ada, got)

	all, err := s.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
}
