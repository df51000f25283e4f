// Package types holds all shared data structures (models) used across
// the application. Keeping them in one place prevents import cycles:
// handlers, storage, and utils can all import types without depending
// on each other.
package types

import "github.com/google/uuid"

// PersonID is the opaque identity of a Person. It is always generated on
// the server (uuid v4) and never accepted from a client payload.
type PersonID = uuid.UUID

// Person represents a person record in our system.
//
// A Person is a value: handlers never mutate one in place. An update
// builds a new Person that keeps the same ID and is handed to the
// repository as a full replacement.
//
// Every field is a comparable type, which the in-memory store relies on
// for its compare-and-swap update.
type Person struct {
	ID        PersonID `json:"id"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	StudentID string   `json:"studentId"`
	Gender    string   `json:"gender"`
}

// CreatePersonRequest is the POST /persons payload.
//
// Struct tags serve two purposes:
//
//  1. json:"..." names the camelCase key the client sends.
//  2. validate:"..." lists rules checked by the go-playground/validator
//     package. "required" means the field must be present and non-empty.
//
// There is deliberately no ID field: identities are generated server-side.
type CreatePersonRequest struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName"  validate:"required"`
	StudentID string `json:"studentId" validate:"required"`
	Gender    string `json:"gender"    validate:"required"`
}

// UpdatePersonRequest is the PUT /persons/{id} payload.
//
// All fields are pointers so "absent" (nil) can be told apart from
// "present". Absent fields keep the stored value; present ones must not
// be empty.
type UpdatePersonRequest struct {
	FirstName *string `json:"firstName" validate:"omitnil,min=1"`
	LastName  *string `json:"lastName"  validate:"omitnil,min=1"`
	StudentID *string `json:"studentId" validate:"omitnil,min=1"`
	Gender    *string `json:"gender"    validate:"omitnil,min=1"`
}

// NewPerson builds a Person with a fresh random identity.
func NewPerson(req CreatePersonRequest) Person {
	return Person{
		ID:        uuid.New(),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		StudentID: req.StudentID,
		Gender:    req.Gender,
	}
}

// Merge returns a copy of p with every field present in req applied.
// The ID is never touched.
func (p Person) Merge(req UpdatePersonRequest) Person {
	if req.FirstName != nil {
		p.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		p.LastName = *req.LastName
	}
	if req.StudentID != nil {
		p.StudentID = *req.StudentID
	}
	if req.Gender != nil {
		p.Gender = *req.Gender
	}
	return p
}

// CreateResult wraps the identifier of a newly created Person.
type CreateResult struct {
	ID PersonID
}

// UpdateResult carries the Person as stored after a successful update.
type UpdateResult struct {
	Person Person
}

// DeleteResult wraps the identifier of the removed Person.
type DeleteResult struct {
	RemovedID PersonID `json:"removedId"`
}
