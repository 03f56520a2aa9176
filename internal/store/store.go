// internal/store/store.go

// Package store is the document-oriented entity store behind the loan service.
//
// Every entity is a JSON document of a given Kind. The store owns the id,
// createdAt and updatedAt fields. Filters are equality matches on top-level
// fields, and reads that return several documents order them newest first.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// Kind names an entity collection.
type Kind string

const (
	KindForm         Kind = "form"
	KindSection      Kind = "section"
	KindQuestion     Kind = "question"
	KindLoan         Kind = "loan"
	KindClient       Kind = "client"
	KindScreening    Kind = "screening"
	KindACAT         Kind = "acat"
	KindHistory      Kind = "history"
	KindTask         Kind = "task"
	KindNotification Kind = "notification"
	KindAccount      Kind = "account"
	KindRole         Kind = "role"
)

// Reserved document fields.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// ErrNotFound is returned when no document matches a filter.
var ErrNotFound = errors.New("store: entity not found")

// Document is a JSON object as stored.
type Document map[string]interface{}

// ID returns the document identity.
func (d Document) ID() string {
	id, _ := d[FieldID].(string)
	return id
}

// Filter selects documents whose top-level fields equal the given values.
type Filter map[string]interface{}

// ByID is shorthand for a filter on the identity field.
func ByID(id string) Filter {
	return Filter{FieldID: id}
}

// Store is a key-based CRUD store with a unit-of-work boundary.
type Store interface {
	// Get returns the newest document matching filter or ErrNotFound.
	Get(ctx context.Context, kind Kind, filter Filter) (Document, error)
	// GetForUpdate is Get that also locks the document against other writers
	// until the enclosing transaction ends.
	GetForUpdate(ctx context.Context, kind Kind, filter Filter) (Document, error)
	// List returns every matching document, newest first.
	List(ctx context.Context, kind Kind, filter Filter) ([]Document, error)
	// Create persists doc, assigning id and timestamps, and returns the stored form.
	Create(ctx context.Context, kind Kind, doc Document) (Document, error)
	// Update merges patch into the newest matching document.
	Update(ctx context.Context, kind Kind, filter Filter, patch Document) (Document, error)
	// Delete removes every matching document and returns how many were removed.
	Delete(ctx context.Context, kind Kind, filter Filter) (int, error)
	// RunInTx runs fn against a transactional view. Writes made through tx
	// become visible only if fn returns nil. Nested calls join the outer unit.
	RunInTx(ctx context.Context, fn func(tx Store) error) error
}

// Encode converts a typed entity into a normalized Document.
func Encode(v interface{}) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode entity: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("encode entity: %w", err)
	}
	return doc, nil
}

// Decode converts a Document into a typed entity.
func Decode(doc Document, out interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode entity: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode entity: %w", err)
	}
	return nil
}

// GetAs fetches one document and decodes it into T.
func GetAs[T any](ctx context.Context, s Store, kind Kind, filter Filter) (*T, error) {
	doc, err := s.Get(ctx, kind, filter)
	if err != nil {
		return nil, err
	}
	var out T
	if err := Decode(doc, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAs fetches matching documents and decodes them into T.
func ListAs[T any](ctx context.Context, s Store, kind Kind, filter Filter) ([]T, error) {
	docs, err := s.List(ctx, kind, filter)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := Decode(doc, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// CreateAs encodes v, creates it, and decodes the stored form.
func CreateAs[T any](ctx context.Context, s Store, kind Kind, v *T) (*T, error) {
	doc, err := Encode(v)
	if err != nil {
		return nil, err
	}
	stripReserved(doc)
	created, err := s.Create(ctx, kind, doc)
	if err != nil {
		return nil, err
	}
	var out T
	if err := Decode(created, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateAs applies patch and decodes the stored result into T.
func UpdateAs[T any](ctx context.Context, s Store, kind Kind, filter Filter, patch Document) (*T, error) {
	doc, err := s.Update(ctx, kind, filter, patch)
	if err != nil {
		return nil, err
	}
	var out T
	if err := Decode(doc, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// stripReserved drops zero-valued store-owned fields an encoded struct carries.
func stripReserved(doc Document) {
	if doc.ID() == "" {
		delete(doc, FieldID)
	}
	delete(doc, FieldCreatedAt)
	delete(doc, FieldUpdatedAt)
}

// normalize round-trips a value through JSON so comparisons see the same
// shapes the store holds (numbers as float64, slices as []interface{}).
func normalize(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeFilter(filter Filter) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(filter))
	for k, v := range filter {
		n, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("filter field %s: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}

func matches(doc Document, filter map[string]interface{}) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// deepCopy clones a normalized JSON value.
func deepCopy(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case Document:
		out := make(Document, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}

func copyDocument(doc Document) Document {
	return deepCopy(doc).(Document)
}
