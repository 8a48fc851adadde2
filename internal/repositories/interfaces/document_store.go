package interfaces

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrConflict = errors.New("document precondition failed")
)

// Document is a raw document as held by the store. Data values are plain Go
// types: string, bool, int64, float64, time.Time, map[string]interface{} and
// []interface{}.
type Document struct {
	ID   string
	Data map[string]interface{}
}

// Query selects documents whose Field is one of In, ordered by OrderBy. A single
// value in In is an equality filter. Documents without an OrderBy field are
// left out of the result set.
type Query struct {
	Collection string
	Field      string
	In         []string
	OrderBy    string
	Descending bool
}

// Matches reports whether data satisfies the query filter.
func (q Query) Matches(data map[string]interface{}) bool {
	v, ok := data[q.Field].(string)
	if !ok {
		return false
	}
	for _, want := range q.In {
		if v == want {
			return true
		}
	}
	return false
}

// Precondition guards a write: every field must currently hold one of its
// expected values or the update fails with ErrConflict.
type Precondition struct {
	Fields []FieldExpectation
}

type FieldExpectation struct {
	Field string
	In    []string
}

func (p *Precondition) Satisfied(data map[string]interface{}) bool {
	if p == nil {
		return true
	}
	for _, exp := range p.Fields {
		v, _ := data[exp.Field].(string)
		found := false
		for _, want := range exp.In {
			if v == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

type SnapshotFunc func(docs []Document)

type ErrorFunc func(err error)

type Listener interface {
	Stop()
}

type DocumentStore interface {
	// Listen attaches a live query. onSnapshot receives the complete ordered
	// result set every time it changes, starting with the initial set. onError
	// is called at most once, after which the listener delivers nothing more.
	Listen(ctx context.Context, query Query, onSnapshot SnapshotFunc, onError ErrorFunc) (Listener, error)

	// Update merges fields into a single document. pre may be nil.
	Update(ctx context.Context, collection, id string, fields map[string]interface{}, pre *Precondition) error

	Name() string
	Close() error
}
