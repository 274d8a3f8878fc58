/*
Package storage provides the read-mostly record store holding the desired
state written by provisioning tooling.

Records are loosely typed rows (Record) grouped in tables ("clusters",
"providers", "nodes"). Queries are conjunctions and disjunctions of equality
tests:

	nodes, err := store.FindAll(storage.TableNodes, storage.And(
		storage.Where("provider_id").Eq(provider.ID),
		storage.Where("state").Eq("SUCCESS"),
	))

FindAll always returns records in insertion order, which downstream code
relies on as the tie-breaker when sorting nodes by recovery priority.

# Engines

Two engines implement Store:

  - MemoryStore, loaded from a JSON document file laid out as
    {"table": {"<doc id>": {...}}}. Document IDs are numeric and increase
    with insertion, so rows are ordered by numeric ID.
  - BoltStore, one bucket per table keyed by the bucket sequence. The agent
    opens it read-only; Import converts a JSON document into a BoltStore.

Open picks the engine from the file extension.

# Fail-Open

A missing or zero-length store file opens as an empty store. Every query then
reports ErrNotFound or an empty result, and the recovery pass exits
successfully with a warning instead of crash-looping before the desired state
exists on disk. A file that exists but cannot be parsed is an error.
*/
package storage
