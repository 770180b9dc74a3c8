package storage

import "errors"

// NotFoundError is returned when a fact or event doesn't exist in the store.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "record"
	}
	if e.ID == "" {
		return kind + " not found"
	}
	return kind + " not found: " + e.ID
}

// FactNotFound builds a NotFoundError for a fact ID.
func FactNotFound(id string) NotFoundError {
	return NotFoundError{Kind: "fact", ID: id}
}

// EventNotFound builds a NotFoundError for an event ID.
func EventNotFound(id string) NotFoundError {
	return NotFoundError{Kind: "event", ID: id}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}
