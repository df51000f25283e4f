// Package person contains all HTTP handlers for the Person resource.
//
// HANDLER PATTERN USED HERE: THE CLOSURE / FACTORY PATTERN
// ────────────────────────────────────────────────────────────
// chi expects handler functions with the signature:
//
//	func(http.ResponseWriter, *http.Request)
//
// That signature has no room for a repository or a metrics registry, so
// every handler is built by a factory that accepts its dependencies and
// returns a closure over them:
//
//	r.Post("/", person.New(repo, m))
//	//          ^^^^^^^^^^^^^^^^^^
//	//          New(repo, m) runs ONCE at startup.
//	//          The returned func runs on EVERY request.
//
// The handlers are the mediator between HTTP and storage.Repository: they
// decode and validate payloads, call exactly the repository operations a
// request needs, and turn each outcome into a status code plus either the
// success body or a response.Envelope.
package person

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aanand-mishra/persons-api/internal/metrics"
	"github.com/aanand-mishra/persons-api/internal/storage"
	"github.com/aanand-mishra/persons-api/internal/types"
	"github.com/aanand-mishra/persons-api/internal/utils/response"
)

// Operation labels, shared by spans and the persons_operations_total counter.
const (
	opCreate = "create"
	opRead   = "read"
	opUpdate = "update"
	opDelete = "delete"
	opList   = "list"
)

var (
	// validator.Validate caches struct metadata and is safe for concurrent use.
	validate = response.NewValidator()

	tracer = otel.Tracer("github.com/aanand-mishra/persons-api/internal/http/handlers/person")

	errEmptyBody    = errors.New("request body is empty")
	errTrailingData = errors.New("unexpected data after JSON object")
)

// Register mounts the person routes under /persons.
//
//	POST   /persons       → New
//	GET    /persons       → GetList
//	GET    /persons/{id}  → GetByID
//	PUT    /persons/{id}  → Update
//	DELETE /persons/{id}  → Delete
//
// m may be nil, in which case no operation metrics are recorded.
func Register(r chi.Router, repo storage.Repository, m *metrics.Metrics) {
	r.Route("/persons", func(r chi.Router) {
		r.Post("/", New(repo, m))
		r.Get("/", GetList(repo, m))
		r.Get("/{id}", GetByID(repo, m))
		r.Put("/{id}", Update(repo, m))
		r.Delete("/{id}", Delete(repo, m))
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// New handles POST /persons
// Creates a person from the JSON request body. The identity is generated
// here; an "id" in the payload is ignored.
//
// Request body (JSON):
//
//	{ "firstName": "Ada", "lastName": "Lovelace", "studentId": "S1", "gender": "F" }
//
// Success response (201 Created), the stored person:
//
//	{ "id": "7b0e…", "firstName": "Ada", "lastName": "Lovelace", "studentId": "S1", "gender": "F" }
//
// Error responses:
//
//	400 Bad Request: empty body, malformed JSON, failed validation, id conflict
//	500 Internal: storage failure
//
// ─────────────────────────────────────────────────────────────────────────────
func New(repo storage.Repository, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "person.create")
		defer span.End()

		slog.Info("creating a person")

		// ── Step 1: Decode and validate the payload ───────────────────
		var req types.CreatePersonRequest
		if !decode(w, r, &req) || !valid(w, req) {
			m.ObserveOperation(opCreate, metrics.OutcomeInvalid)
			return
		}

		// ── Step 2: Build the value and store it ──────────────────────
		person := types.NewPerson(req)
		span.SetAttributes(attribute.String("person.id", person.ID.String()))

		if _, err := repo.Create(ctx, person); err != nil {
			if errors.Is(err, storage.ErrPersonAlreadyExists) {
				slog.Warn("person id already taken", slog.String("id", person.ID.String()))
				m.ObserveOperation(opCreate, metrics.OutcomeConflict)
				response.WriteJSON(w, http.StatusBadRequest,
					response.GeneralError(response.CodeAlreadyExists, err))
				return
			}
			internalError(w, span, m, opCreate, err)
			return
		}

		slog.Info("person created", slog.String("id", person.ID.String()))
		m.ObserveOperation(opCreate, metrics.OutcomeOK)

		// ── Step 3: Echo the stored person ────────────────────────────
		response.WriteJSON(w, http.StatusCreated, person)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetByID handles GET /persons/{id}
//
// Path parameter: {id}, a UUID.
//
// Success response (200 OK): the person.
//
// Error responses:
//
//	400 Bad Request: id is not a UUID
//	404 Not Found: no person under id
//	500 Internal: storage failure
//
// ─────────────────────────────────────────────────────────────────────────────
func GetByID(repo storage.Repository, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "person.read")
		defer span.End()

		id, ok := pathID(w, r)
		if !ok {
			m.ObserveOperation(opRead, metrics.OutcomeInvalid)
			return
		}
		span.SetAttributes(attribute.String("person.id", id.String()))
		slog.Info("getting a person", slog.String("id", id.String()))

		person, found, err := repo.Read(ctx, id)
		if err != nil {
			internalError(w, span, m, opRead, err)
			return
		}
		if !found {
			notFound(w, m, opRead, id)
			return
		}

		m.ObserveOperation(opRead, metrics.OutcomeOK)
		response.WriteJSON(w, http.StatusOK, person)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetList handles GET /persons
// Returns a JSON array of every stored person, in no particular order.
// An empty store yields [] (not null).
// ─────────────────────────────────────────────────────────────────────────────
func GetList(repo storage.Repository, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "person.list")
		defer span.End()

		slog.Info("getting all persons")

		persons, err := repo.All(ctx)
		if err != nil {
			internalError(w, span, m, opList, err)
			return
		}
		if persons == nil {
			persons = []types.Person{}
		}
		span.SetAttributes(attribute.Int("person.count", len(persons)))

		m.ObserveOperation(opList, metrics.OutcomeOK)
		response.WriteJSON(w, http.StatusOK, persons)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Update handles PUT /persons/{id}
// Applies a PARTIAL update: only the fields present in the body change.
//
// Request body (JSON), any subset of the person fields:
//
//	{ "firstName": "Grace" }
//
// Success response (200 OK), the person as stored after the update.
//
// Flow: decode → read the current value → 404 if absent (Update is never
// called) → validate the present fields → merge the payload over it →
// full replace through Update. If the person is deleted between the read
// and the replace, Update reports ErrPersonDoesNotExist and the client
// gets the same 404.
//
// Error responses:
//
//	400 Bad Request: id is not a UUID, empty body, malformed JSON,
//	                 a present field is empty
//	404 Not Found: no person under id
//	500 Internal: storage failure
//
// ─────────────────────────────────────────────────────────────────────────────
func Update(repo storage.Repository, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "person.update")
		defer span.End()

		id, ok := pathID(w, r)
		if !ok {
			m.ObserveOperation(opUpdate, metrics.OutcomeInvalid)
			return
		}
		span.SetAttributes(attribute.String("person.id", id.String()))
		slog.Info("updating a person", slog.String("id", id.String()))

		var req types.UpdatePersonRequest
		if !decode(w, r, &req) {
			m.ObserveOperation(opUpdate, metrics.OutcomeInvalid)
			return
		}

		// An unknown id is reported as 404 before the field rules run.
		current, found, err := repo.Read(ctx, id)
		if err != nil {
			internalError(w, span, m, opUpdate, err)
			return
		}
		if !found {
			notFound(w, m, opUpdate, id)
			return
		}

		if !valid(w, req) {
			m.ObserveOperation(opUpdate, metrics.OutcomeInvalid)
			return
		}

		res, err := repo.Update(ctx, current.Merge(req))
		if err != nil {
			if errors.Is(err, storage.ErrPersonDoesNotExist) {
				notFound(w, m, opUpdate, id)
				return
			}
			internalError(w, span, m, opUpdate, err)
			return
		}

		slog.Info("person updated", slog.String("id", id.String()))
		m.ObserveOperation(opUpdate, metrics.OutcomeOK)
		response.WriteJSON(w, http.StatusOK, res.Person)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Delete handles DELETE /persons/{id}
//
// Success response (200 OK):
//
//	{ "removedId": "7b0e…" }
//
// Error responses:
//
//	400 Bad Request: id is not a UUID
//	404 Not Found: no person under id
//	500 Internal: storage failure
//
// ─────────────────────────────────────────────────────────────────────────────
func Delete(repo storage.Repository, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "person.delete")
		defer span.End()

		id, ok := pathID(w, r)
		if !ok {
			m.ObserveOperation(opDelete, metrics.OutcomeInvalid)
			return
		}
		span.SetAttributes(attribute.String("person.id", id.String()))
		slog.Info("deleting a person", slog.String("id", id.String()))

		res, err := repo.Delete(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrPersonDoesNotExist) {
				notFound(w, m, opDelete, id)
				return
			}
			internalError(w, span, m, opDelete, err)
			return
		}

		slog.Info("person deleted", slog.String("id", id.String()))
		m.ObserveOperation(opDelete, metrics.OutcomeOK)
		response.WriteJSON(w, http.StatusOK, res)
	}
}

// pathID parses the {id} path segment. On failure it writes a 400
// validation envelope keyed "id" and returns false.
func pathID(w http.ResponseWriter, r *http.Request) (types.PersonID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		response.WriteJSON(w, http.StatusBadRequest, response.FieldErrors(map[string][]string{
			"id": {fmt.Sprintf("field id must be a valid UUID, got %q", raw)},
		}))
		return uuid.Nil, false
	}
	return id, true
}

// decode reads exactly one JSON object from the body into dst. io.EOF on
// the first read means the body was empty, which is a general error rather
// than a field error. Anything after the object is rejected.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	err := dec.Decode(dst)
	if errors.Is(err, io.EOF) {
		response.WriteJSON(w, http.StatusBadRequest,
			response.GeneralError(response.CodeBadRequest, errEmptyBody))
		return false
	}
	if err != nil {
		response.WriteJSON(w, http.StatusBadRequest, response.DecodeError(err))
		return false
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		response.WriteJSON(w, http.StatusBadRequest, response.FieldErrors(map[string][]string{
			response.KeyBody: {errTrailingData.Error()},
		}))
		return false
	}
	return true
}

func valid(w http.ResponseWriter, v any) bool {
	err := validate.Struct(v)
	if err == nil {
		return true
	}
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		response.WriteJSON(w, http.StatusBadRequest, response.ValidationError(errs))
	} else {
		response.WriteJSON(w, http.StatusBadRequest,
			response.GeneralError(response.CodeBadRequest, err))
	}
	return false
}

// notFound is a routine outcome: it is counted but never logged as an error.
func notFound(w http.ResponseWriter, m *metrics.Metrics, op string, id types.PersonID) {
	m.ObserveOperation(op, metrics.OutcomeNotFound)
	response.WriteJSON(w, http.StatusNotFound, response.NotFound(id.String()))
}

func internalError(w http.ResponseWriter, span trace.Span, m *metrics.Metrics, op string, err error) {
	slog.Error("storage failure",
		slog.String("operation", op),
		slog.String("error", err.Error()))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	m.ObserveOperation(op, metrics.OutcomeError)
	response.WriteJSON(w, http.StatusInternalServerError,
		response.GeneralError(response.CodeInternal, err))
}
