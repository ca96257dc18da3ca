// Package ingestion provides the write path for geo entities.
//
// The Pipeline type manages the ingestion workflow:
//   - Validating entities and deriving stable ids when none are supplied
//   - Generating embeddings in batches over a worker pool
//   - Committing each entity to the store and the vector index together
//
// An entity is only stored once its embedding exists, so the index and the
// store never disagree about what is searchable. Writes to the same entity id
// are serialized via striped locks; there is no global write lock.
package ingestion
