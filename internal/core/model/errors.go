package model

import (
	"errors"
	"fmt"
)

// InputValidationError reports a missing or corrupt prerequisite. It is
// fatal: the engine aborts before round 1.
type InputValidationError struct {
	Reason string
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("input validation: %s", e.Reason)
}

// TransportError wraps a network-level failure talking to the LLM agent or
// the vector index. LLM transport failures are retried and then degrade
// the affected community; vector-index failures abort the run.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecisionContractError reports agent output that failed tagged-union
// validation. The affected community is recorded as manual_review.
type DecisionContractError struct {
	CommunityID string
	Reason      string
}

func (e *DecisionContractError) Error() string {
	return fmt.Sprintf("decision contract: community %s: %s", e.CommunityID, e.Reason)
}

// ErrAlreadyMerged is the ConsistencyError case: a merge pair whose source
// or destination was already consumed by an earlier merge in the same run.
// The later write is rejected and logged, never silently applied.
var ErrAlreadyMerged = errors.New("entry already merged in this run")

// ErrStatusConflict is returned by the entry store when a conditional
// status transition finds the entry in an unexpected state.
var ErrStatusConflict = errors.New("entry status conflict")

// ErrNotFound is returned by the entry store for unknown ids.
var ErrNotFound = errors.New("entry not found")
