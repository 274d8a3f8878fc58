package storage

import "fmt"

// Query selects records by equality tests over named fields
type Query interface {
	Match(r Record) bool
}

// QueryFunc adapts a function to the Query interface
type QueryFunc func(r Record) bool

func (f QueryFunc) Match(r Record) bool {
	return f(r)
}

// Field names a record field for building equality tests
type Field string

// Where starts a query over the named field
func Where(name string) Field {
	return Field(name)
}

// Eq matches records whose field equals value. Values are compared in their
// printed form so numeric IDs written by older tooling match string IDs.
func (f Field) Eq(value interface{}) Query {
	want := fmt.Sprint(value)
	return QueryFunc(func(r Record) bool {
		got, ok := r[string(f)]
		if !ok || got == nil {
			return false
		}
		return fmt.Sprint(got) == want
	})
}

// And matches records satisfying every query
func And(qs ...Query) Query {
	return QueryFunc(func(r Record) bool {
		for _, q := range qs {
			if !q.Match(r) {
				return false
			}
		}
		return true
	})
}

// Or matches records satisfying at least one query
func Or(qs ...Query) Query {
	return QueryFunc(func(r Record) bool {
		for _, q := range qs {
			if q.Match(r) {
				return true
			}
		}
		return false
	})
}

// All matches every record
func All() Query {
	return QueryFunc(func(Record) bool { return true })
}
