package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when a query matches no record
var ErrNotFound = errors.New("record not found")

// Table names used by provisioning tooling
const (
	TableClusters  = "clusters"
	TableProviders = "providers"
	TableNodes     = "nodes"
)

// Record is one loosely typed row as persisted by provisioning tooling
type Record map[string]interface{}

// Store is a read-mostly record store queried by table and predicate.
// FindAll returns records in insertion order.
type Store interface {
	// GetSingleton returns the first record of a table or ErrNotFound
	GetSingleton(table string) (Record, error)

	// FindAll returns every record of table matching q, possibly none
	FindAll(table string, q Query) ([]Record, error)

	// Empty reports whether the store holds no records at all
	Empty() bool

	Close() error
}

// Open opens the store at path, choosing the engine by file extension:
// ".json" files use the JSON document layout, anything else is BoltDB.
//
// A missing or zero-length file yields an empty store rather than an error
// so a machine whose desired state has not been materialized yet can still
// run a (no-op) pass.
func Open(path string) (Store, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewMemoryStore(), nil
		}
		return nil, fmt.Errorf("failed to stat store %s: %w", path, err)
	}
	if info.Size() == 0 {
		return NewMemoryStore(), nil
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return OpenJSONStore(path)
	}
	return OpenBoltStore(path, true)
}
