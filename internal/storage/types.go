package storage

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound indicates that the requested person, location, edge or story
	// does not exist in the given owner scope.
	ErrNotFound = errors.New("resource not found")

	// ErrConflict indicates that an edge, nickname or canonical name already exists.
	ErrConflict = errors.New("resource already exists")

	// ErrInvalidInput indicates that a required field is missing or malformed.
	ErrInvalidInput = errors.New("invalid input")
)

// ListOptions provides pagination for story listings.
type ListOptions struct {
	// Limit is the maximum number of rows (default: 50, max: 500).
	Limit int

	// Offset is the number of rows to skip.
	Offset int

	// SortOrder is "asc" or "desc" by creation (default: "desc").
	SortOrder string
}

// Normalize applies defaults and bounds.
func (o *ListOptions) Normalize() {
	if o.Limit <= 0 {
		o.Limit = 50
	}
	if o.Limit > 500 {
		o.Limit = 500
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	o.SortOrder = strings.ToLower(o.SortOrder)
	if o.SortOrder != "asc" {
		o.SortOrder = "desc"
	}
}

// DuplicateGroup is a set of people in one owner scope sharing a canonical
// name, compared case-insensitively.
type DuplicateGroup struct {
	OwnerID string
	Name    string
	IDs     []int64
}
