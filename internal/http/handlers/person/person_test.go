package person

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/aanand-mishra/persons-api/internal/metrics"
	"github.com/aanand-mishra/persons-api/internal/storage"
	"github.com/aanand-mishra/persons-api/internal/storage/memory"
	"github.com/aanand-mishra/persons-api/internal/storage/mocks"
	"github.com/aanand-mishra/persons-api/internal/storage/storagetest"
	"github.com/aanand-mishra/persons-api/internal/types"
	"github.com/aanand-mishra/persons-api/internal/utils/response"
)

const adaJSON = `{"firstName":"Ada","lastName":"Lovelace","studentId":"S1","gender":"F"}`

// PersonHandlerSuite drives the handlers through a chi router backed by
// the in-memory store.
type PersonHandlerSuite struct {
	suite.Suite
	repo    *memory.Memory
	metrics *metrics.Metrics
	router  chi.Router
}

func TestPersonHandlerSuite(t *testing.T) {
	suite.Run(t, new(PersonHandlerSuite))
}

func (s *PersonHandlerSuite) SetupTest() {
	s.repo = memory.New()
	s.metrics = metrics.New()
	s.router = chi.NewRouter()
	Register(s.router, s.repo, s.metrics)
}

func (s *PersonHandlerSuite) seed(first, last string) types.Person {
	p := storagetest.NewPerson(first, last)
	_, err := s.repo.Create(s.T().Context(), p)
	s.Require().NoError(err)
	return p
}

func (s *PersonHandlerSuite) TestCreateEchoesStoredPerson() {
	rec := do(s.router, http.MethodPost, "/persons", adaJSON)
	s.Require().Equal(http.StatusCreated, rec.Code)

	var created types.Person
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &created))
	s.NotEqual(uuid.Nil, created.ID)
	s.Equal("Ada", created.FirstName)
	s.Equal("Lovelace", created.LastName)
	s.Equal("S1", created.StudentID)
	s.Equal("F", created.Gender)

	stored, found, err := s.repo.Read(s.T().Context(), created.ID)
	s.Require().NoError(err)
	s.True(found)
	s.Equal(created, stored)
}

func (s *PersonHandlerSuite) TestCreateIgnoresClientID() {
	clientID := uuid.New()
	rec := do(s.router, http.MethodPost, "/persons",
		`{"id":"`+clientID.String()+`","firstName":"Ada","lastName":"Lovelace","studentId":"S1","gender":"F"}`)
	s.Require().Equal(http.StatusCreated, rec.Code)

	var created types.Person
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &created))
	s.NotEqual(clientID, created.ID)
}

func (s *PersonHandlerSuite) TestCreateGeneratesUniqueIDs() {
	const n = 25
	seen := make(map[types.PersonID]struct{}, n)
	for range n {
		rec := do(s.router, http.MethodPost, "/persons", adaJSON)
		s.Require().Equal(http.StatusCreated, rec.Code)

		var created types.Person
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &created))
		seen[created.ID] = struct{}{}
	}
	s.Len(seen, n)

	all, err := s.repo.All(s.T().Context())
	s.Require().NoError(err)
	s.Len(all, n)
}

func (s *PersonHandlerSuite) TestCreateValidation() {
	s.Run("missing field", func() {
		rec := do(s.router, http.MethodPost, "/persons", `{"firstName":"Ada","studentId":"S1","gender":"F"}`)
		s.Require().Equal(http.StatusBadRequest, rec.Code)

		env := envelope(s.T(), rec)
		s.Equal(response.CodeValidation, env.Code)
		s.Equal([]string{"field lastName is required"}, env.Errors["lastName"])
		s.Len(env.Errors, 1)
	})

	s.Run("wrong type", func() {
		rec := do(s.router, http.MethodPost, "/persons", `{"firstName":1,"lastName":"L","studentId":"S1","gender":"F"}`)
		s.Require().Equal(http.StatusBadRequest, rec.Code)
		s.Contains(envelope(s.T(), rec).Errors, "firstName")
	})

	s.Run("malformed json", func() {
		rec := do(s.router, http.MethodPost, "/persons", `{"firstName":`)
		s.Require().Equal(http.StatusBadRequest, rec.Code)
		s.Contains(envelope(s.T(), rec).Errors, response.KeyBody)
	})

	s.Run("trailing data", func() {
		rec := do(s.router, http.MethodPost, "/persons", adaJSON+`{"garbage":`)
		s.Require().Equal(http.StatusBadRequest, rec.Code)

		env := envelope(s.T(), rec)
		s.Equal(response.CodeValidation, env.Code)
		s.Equal([]string{"unexpected data after JSON object"}, env.Errors[response.KeyBody])
	})

	s.Run("empty body", func() {
		rec := do(s.router, http.MethodPost, "/persons", "")
		s.Require().Equal(http.StatusBadRequest, rec.Code)

		env := envelope(s.T(), rec)
		s.Equal(response.CodeBadRequest, env.Code)
		s.Equal([]string{"request body is empty"}, env.Errors[response.KeyError])
	})

	all, err := s.repo.All(s.T().Context())
	s.Require().NoError(err)
	s.Empty(all)
	s.Equal(5.0, testutil.ToFloat64(s.metrics.PersonOperations.WithLabelValues(opCreate, metrics.OutcomeInvalid)))
}

func (s *PersonHandlerSuite) TestGetByID() {
	ada := s.seed("Ada", "Lovelace")

	rec := do(s.router, http.MethodGet, "/persons/"+ada.ID.String(), "")
	s.Require().Equal(http.StatusOK, rec.Code)

	var got types.Person
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
	s.Equal(ada, got)
}

func (s *PersonHandlerSuite) TestGetUnknownIDIsNotFound() {
	id := uuid.New()

	rec := do(s.router, http.MethodGet, "/persons/"+id.String(), "")
	s.Require().Equal(http.StatusNotFound, rec.Code)

	env := envelope(s.T(), rec)
	s.Equal("Does not Exist", env.Code)
	s.Require().Len(env.Errors[response.KeyCouldNotFind], 1)
	s.Contains(env.Errors[response.KeyCouldNotFind][0], id.String())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.PersonOperations.WithLabelValues(opRead, metrics.OutcomeNotFound)))
}

func (s *PersonHandlerSuite) TestInvalidPathID() {
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		s.Run(method, func() {
			rec := do(s.router, method, "/persons/not-a-uuid", `{"firstName":"Grace"}`)
			s.Require().Equal(http.StatusBadRequest, rec.Code)

			env := envelope(s.T(), rec)
			s.Equal(response.CodeValidation, env.Code)
			s.Contains(env.Errors, "id")
		})
	}
}

func (s *PersonHandlerSuite) TestUpdateChangesOnlyPresentFields() {
	ada := s.seed("Ada", "Lovelace")

	rec := do(s.router, http.MethodPut, "/persons/"+ada.ID.String(), `{"firstName":"Grace"}`)
	s.Require().Equal(http.StatusOK, rec.Code)

	var updated types.Person
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &updated))
	want := ada
	want.FirstName = "Grace"
	s.Equal(want, updated)

	stored, found, err := s.repo.Read(s.T().Context(), ada.ID)
	s.Require().NoError(err)
	s.True(found)
	s.Equal(want, stored)
}

func (s *PersonHandlerSuite) TestUpdateLastNameOnly() {
	ada := s.seed("Ada", "Lovelace")

	rec := do(s.router, http.MethodPut, "/persons/"+ada.ID.String(), `{"lastName":"King"}`)
	s.Require().Equal(http.StatusOK, rec.Code)

	stored, _, err := s.repo.Read(s.T().Context(), ada.ID)
	s.Require().NoError(err)
	s.Equal("King", stored.LastName)
	s.Equal(ada.FirstName, stored.FirstName)
	s.Equal(ada.StudentID, stored.StudentID)
	s.Equal(ada.Gender, stored.Gender)
}

func (s *PersonHandlerSuite) TestUpdateRejectsEmptyField() {
	ada := s.seed("Ada", "Lovelace")

	rec := do(s.router, http.MethodPut, "/persons/"+ada.ID.String(), `{"lastName":""}`)
	s.Require().Equal(http.StatusBadRequest, rec.Code)
	s.Equal([]string{"field lastName must not be empty"}, envelope(s.T(), rec).Errors["lastName"])

	stored, _, err := s.repo.Read(s.T().Context(), ada.ID)
	s.Require().NoError(err)
	s.Equal(ada, stored)
}

func (s *PersonHandlerSuite) TestUpdateRejectsTrailingData() {
	ada := s.seed("Ada", "Lovelace")

	rec := do(s.router, http.MethodPut, "/persons/"+ada.ID.String(), `{"firstName":"Grace"} {"firstName":"Eve"}`)
	s.Require().Equal(http.StatusBadRequest, rec.Code)
	s.Contains(envelope(s.T(), rec).Errors, response.KeyBody)

	stored, _, err := s.repo.Read(s.T().Context(), ada.ID)
	s.Require().NoError(err)
	s.Equal(ada, stored)
}

func (s *PersonHandlerSuite) TestUpdateUnknownIDWinsOverFieldErrors() {
	rec := do(s.router, http.MethodPut, "/persons/"+uuid.NewString(), `{"lastName":""}`)

	s.Require().Equal(http.StatusNotFound, rec.Code)
	s.Equal(response.CodeDoesNotExist, envelope(s.T(), rec).Code)
}

func (s *PersonHandlerSuite) TestUpdateEmptyBody() {
	ada := s.seed("Ada", "Lovelace")

	rec := do(s.router, http.MethodPut, "/persons/"+ada.ID.String(), "")
	s.Require().Equal(http.StatusBadRequest, rec.Code)
	s.Equal(response.CodeBadRequest, envelope(s.T(), rec).Code)
}

func (s *PersonHandlerSuite) TestUpdateUnknownIDIsNotFound() {
	rec := do(s.router, http.MethodPut, "/persons/"+uuid.NewString(), `{"firstName":"Grace"}`)
	s.Require().Equal(http.StatusNotFound, rec.Code)
	s.Equal(response.CodeDoesNotExist, envelope(s.T(), rec).Code)

	all, err := s.repo.All(s.T().Context())
	s.Require().NoError(err)
	s.Empty(all)
}

func (s *PersonHandlerSuite) TestDelete() {
	ada := s.seed("Ada", "Lovelace")
	grace := s.seed("Grace", "Hopper")

	rec := do(s.router, http.MethodDelete, "/persons/"+ada.ID.String(), "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"removedId":"`+ada.ID.String()+`"}`, rec.Body.String())

	rec = do(s.router, http.MethodGet, "/persons/"+ada.ID.String(), "")
	s.Equal(http.StatusNotFound, rec.Code)

	rec = do(s.router, http.MethodDelete, "/persons/"+ada.ID.String(), "")
	s.Equal(http.StatusNotFound, rec.Code)

	rec = do(s.router, http.MethodGet, "/persons/"+grace.ID.String(), "")
	s.Equal(http.StatusOK, rec.Code)
}

func (s *PersonHandlerSuite) TestDeleteUnknownIDIsNotFound() {
	rec := do(s.router, http.MethodDelete, "/persons/"+uuid.NewString(), "")
	s.Require().Equal(http.StatusNotFound, rec.Code)
	s.Equal(response.CodeDoesNotExist, envelope(s.T(), rec).Code)
}

func (s *PersonHandlerSuite) TestList() {
	s.Run("empty store", func() {
		rec := do(s.router, http.MethodGet, "/persons", "")
		s.Require().Equal(http.StatusOK, rec.Code)
		s.JSONEq(`[]`, rec.Body.String())
	})

	ada := s.seed("Ada", "Lovelace")
	grace := s.seed("Grace", "Hopper")

	rec := do(s.router, http.MethodGet, "/persons", "")
	s.Require().Equal(http.StatusOK, rec.Code)

	var got []types.Person
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
	s.ElementsMatch([]types.Person{ada, grace}, got)
}

// Outcomes the in-memory store cannot produce on demand are driven
// through a mock repository.

func newMockRouter(t *testing.T) (*mocks.MockRepository, chi.Router) {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)

	r := chi.NewRouter()
	Register(r, repo, nil)
	return repo, r
}

func TestCreateConflict(t *testing.T) {
	repo, router := newMockRouter(t)
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).
		Return(types.CreateResult{}, storage.ErrPersonAlreadyExists)

	rec := do(router, http.MethodPost, "/persons", adaJSON)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := envelope(t, rec)
	assert.Equal(t, response.CodeAlreadyExists, env.Code)
	assert.Equal(t, []string{storage.ErrPersonAlreadyExists.Error()}, env.Errors[response.KeyError])
}

func TestUpdateNeverCallsUpdateForMissingPerson(t *testing.T) {
	repo, router := newMockRouter(t)
	id := uuid.New()
	repo.EXPECT().Read(gomock.Any(), id).Return(types.Person{}, false, nil)
	// No Update expectation: a call would fail the test.

	rec := do(router, http.MethodPut, "/persons/"+id.String(), `{"firstName":"Grace"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateLosingRaceToDeleteIsNotFound(t *testing.T) {
	repo, router := newMockRouter(t)
	ada := storagetest.NewPerson("Ada", "Lovelace")
	want := ada
	want.FirstName = "Grace"

	gomock.InOrder(
		repo.EXPECT().Read(gomock.Any(), ada.ID).Return(ada, true, nil),
		repo.EXPECT().Update(gomock.Any(), want).Return(types.UpdateResult{}, storage.ErrPersonDoesNotExist),
	)

	rec := do(router, http.MethodPut, "/persons/"+ada.ID.String(), `{"firstName":"Grace"}`)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, response.CodeDoesNotExist, envelope(t, rec).Code)
}

func TestInfrastructureFailuresAreInternalErrors(t *testing.T) {
	boom := errors.New("connection refused")
	id := uuid.New()

	tests := []struct {
		name   string
		expect func(repo *mocks.MockRepository)
		method string
		path   string
		body   string
	}{
		{
			name: "create",
			expect: func(repo *mocks.MockRepository) {
				repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(types.CreateResult{}, boom)
			},
			method: http.MethodPost, path: "/persons", body: adaJSON,
		},
		{
			name: "read",
			expect: func(repo *mocks.MockRepository) {
				repo.EXPECT().Read(gomock.Any(), id).Return(types.Person{}, false, boom)
			},
			method: http.MethodGet, path: "/persons/" + id.String(),
		},
		{
			name: "update",
			expect: func(repo *mocks.MockRepository) {
				repo.EXPECT().Read(gomock.Any(), id).Return(types.Person{ID: id}, true, nil)
				repo.EXPECT().Update(gomock.Any(), gomock.Any()).Return(types.UpdateResult{}, boom)
			},
			method: http.MethodPut, path: "/persons/" + id.String(), body: `{"gender":"M"}`,
		},
		{
			name: "delete",
			expect: func(repo *mocks.MockRepository) {
				repo.EXPECT().Delete(gomock.Any(), id).Return(types.DeleteResult{}, boom)
			},
			method: http.MethodDelete, path: "/persons/" + id.String(),
		},
		{
			name: "list",
			expect: func(repo *mocks.MockRepository) {
				repo.EXPECT().All(gomock.Any()).Return(nil, boom)
			},
			method: http.MethodGet, path: "/persons",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, router := newMockRouter(t)
			tt.expect(repo)

			rec := do(router, tt.method, tt.path, tt.body)

			require.Equal(t, http.StatusInternalServerError, rec.Code)
			env := envelope(t, rec)
			assert.Equal(t, response.CodeInternal, env.Code)
			assert.Equal(t, []string{boom.Error()}, env.Errors[response.KeyError])
		})
	}
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func envelope(t *testing.T, rec *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}
