package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into coded domain errors.
//
//   - ErrNotFound: row does not exist
//   - ErrConflict: a conditional write matched no row because state moved on
//   - ErrAlreadyUsed: a unique key (voter, committee, term) is already taken
//   - ErrInvalidState: row exists but is in the wrong state for the request
//   - ErrUnavailable: backing resource (database, lock server) unreachable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
