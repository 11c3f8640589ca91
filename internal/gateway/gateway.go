// Package gateway defines the boundary contract to the remote authoritative
// document store. The sync engine is written against these capabilities, not
// a specific vendor API.
package gateway

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no document exists at the path.
var ErrNotFound = errors.New("document not found")

// Doc is a schemaless document as stored remotely.
type Doc map[string]interface{}

// Clone returns a shallow copy of the document.
func (d Doc) Clone() Doc {
	out := make(Doc, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// String returns the string value of a field, or "" if absent or not a string.
func (d Doc) String(field string) string {
	s, _ := d[field].(string)
	return s
}

// Filter is an equality predicate on a document field.
type Filter struct {
	Field string
	Value interface{}
}

// Eq builds an equality filter.
func Eq(field string, value interface{}) Filter {
	return Filter{Field: field, Value: value}
}

// RemoteStore is the request/response document-store capability set.
//
// Append adds a document to a collection and returns the server-assigned id.
// Upsert writes a document at a path; with merge set, existing fields not in
// doc are preserved. Patch applies a partial document, leaving absent fields
// untouched. Query supports conjunctions of equality predicates.
type RemoteStore interface {
	Append(ctx context.Context, collectionPath string, doc Doc) (string, error)
	Upsert(ctx context.Context, docPath string, doc Doc, merge bool) error
	Patch(ctx context.Context, docPath string, partial Doc) error
	Get(ctx context.Context, docPath string) (Doc, error)
	Query(ctx context.Context, collectionPath string, filters ...Filter) ([]Doc, error)
}
