package sentinel

import "errors"

// Sentinel errors for store-level facts. Stores return these (optionally
// wrapped) and services translate them into coded domain errors.
//
// These represent factual states about records, not validation failures:
// - ErrNotFound: record does not exist in the store
// - ErrConflict: a record with the same key already exists
// - ErrInvalidState: record is in the wrong state for the requested mutation
//
// For command rejections use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
)
