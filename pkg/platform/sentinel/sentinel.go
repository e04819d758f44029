package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into coded domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in the store
// - ErrConcurrentModification: write lost the optimistic-concurrency race
// - ErrConflict: uniqueness or state conflict at the storage layer
// - ErrUnavailable: backing service temporarily unreachable
var (
	ErrNotFound               = errors.New("not found")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrConflict               = errors.New("conflict")
	ErrUnavailable            = errors.New("unavailable")
)
