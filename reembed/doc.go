// Package reembed provides functionality for reembedding stored geo entities
// with new or updated embedding models.
//
// This package supports batch processing of entities, progress tracking,
// retry logic with exponential backoff, and vector normalization to ensure
// compatibility with cosine similarity search. Reembedded vectors are written
// back to the store and the vector index together.
package reembed
