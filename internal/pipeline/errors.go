package pipeline

import "fmt"

// StoreError means the article store itself failed during lookup,
// as opposed to the URL simply not being stored yet.
type StoreError struct {
	URL string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store lookup for %s failed: %v", e.URL, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ExtractionError means fetching or parsing the source URL failed.
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// PersistenceError means the article could not be written to the store.
// Extraction succeeded but the caller still gets no article back.
type PersistenceError struct {
	URL string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.URL, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
