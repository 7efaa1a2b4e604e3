package entities

import "errors"

var (
	// ErrInvalidEntityKey is returned for keys that cannot name a directory.
	ErrInvalidEntityKey = errors.New("invalid entity key")
	// ErrInvalidFilename is returned for target file names with path components.
	ErrInvalidFilename = errors.New("invalid file name")
	// ErrReadOnlyQuery is returned when a query predicate or statement could mutate data.
	ErrReadOnlyQuery = errors.New("query must be read-only")
	// ErrNoIndex is returned by similarity backends that have no index for an entity.
	ErrNoIndex = errors.New("no similarity index")
	// ErrEmbeddingShape is returned when a backend returns vectors of the wrong count or size.
	ErrEmbeddingShape = errors.New("unexpected embedding shape")
	// ErrIngestBusy is returned when another process holds the ingestion lock.
	ErrIngestBusy = errors.New("ingestion already running")
)
