// Package nodegraph provides the graph store and incremental evaluation
// engine behind a node-based shader editor.
package nodegraph

import (
	"errors"
	"fmt"
)

// Sentinel errors for command application.
var (
	// ErrRejected matches every *RejectedError.
	ErrRejected = errors.New("command rejected")

	// ErrIntegrity matches every *IntegrityError.
	ErrIntegrity = errors.New("graph integrity violation")

	// ErrNilCommand indicates a nil command was passed to the session.
	ErrNilCommand = errors.New("command cannot be nil")

	// ErrUnknownCommand indicates a command envelope with an unknown kind.
	ErrUnknownCommand = errors.New("unknown command kind")
)

// Sentinel errors for history and batching.
var (
	// ErrNothingToUndo indicates the undo stack is empty.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrNothingToRedo indicates the redo stack is empty.
	ErrNothingToRedo = errors.New("nothing to redo")

	// ErrBatchInProgress indicates BeginBatch, Record, Undo or Redo was
	// called while a batch is open.
	ErrBatchInProgress = errors.New("batch already in progress")

	// ErrNoBatch indicates CommitBatch or CancelBatch without BeginBatch.
	ErrNoBatch = errors.New("no batch in progress")
)

// Sentinel errors for lookups and evaluation.
var (
	// ErrNodeNotFound indicates a node id that does not resolve.
	ErrNodeNotFound = errors.New("node not found")

	// ErrWireNotFound indicates a wire id that does not resolve.
	ErrWireNotFound = errors.New("wire not found")

	// ErrFrameNotFound indicates a frame id that does not resolve.
	ErrFrameNotFound = errors.New("frame not found")

	// ErrSocketNotFound indicates a socket id that does not resolve.
	ErrSocketNotFound = errors.New("socket not found")

	// ErrRequiredInput indicates a required input socket has no incoming wire.
	ErrRequiredInput = errors.New("required input is not connected")

	// ErrUnknownNodeType indicates the registry has no evaluator for a node type.
	ErrUnknownNodeType = errors.New("no evaluator registered for node type")

	// ErrSnapshotVersion indicates a snapshot from an unsupported format version.
	ErrSnapshotVersion = errors.New("unsupported snapshot version")
)

// Reason is the first validation check a rejected command failed.
type Reason string

// Rejection reasons. Wire checks run in the order listed, up to ReasonCycle.
const (
	ReasonMissingSocket   Reason = "missing-socket"
	ReasonDirection       Reason = "direction"
	ReasonSelfLoop        Reason = "self-loop"
	ReasonTypeMismatch    Reason = "type-mismatch"
	ReasonConnectionLimit Reason = "connection-limit"
	ReasonCycle           Reason = "cycle"

	ReasonMissingEntity Reason = "missing-entity"
	ReasonDuplicateID   Reason = "duplicate-id"
	ReasonInvalidParams Reason = "invalid-params"
)

// RejectedError reports a command that failed validation. The graph is
// untouched when it is returned.
type RejectedError struct {
	// Command is the kind of the rejected command.
	Command CommandKind
	// Reason is the first failing check.
	Reason Reason
	// Detail describes the offending entity.
	Detail string
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s rejected: %s", e.Command, e.Reason)
	}
	return fmt.Sprintf("%s rejected: %s: %s", e.Command, e.Reason, e.Detail)
}

// Is makes errors.Is(err, ErrRejected) true for any RejectedError.
func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

func reject(kind CommandKind, reason Reason, format string, args ...any) *RejectedError {
	return &RejectedError{Command: kind, Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// RejectionReason extracts the Reason from err, if err is a RejectedError.
func RejectionReason(err error) (Reason, bool) {
	var rej *RejectedError
	if errors.As(err, &rej) {
		return rej.Reason, true
	}
	return "", false
}

// IntegrityError reports a command whose captured payload no longer matches
// the store, or a store that breaks one of its invariants. It signals a bug
// in the caller, not a recoverable condition.
type IntegrityError struct {
	// Command is the kind of the offending command, empty for store checks.
	Command CommandKind
	// Detail describes the mismatch.
	Detail string
}

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	if e.Command == "" {
		return "integrity violation: " + e.Detail
	}
	return fmt.Sprintf("%s: integrity violation: %s", e.Command, e.Detail)
}

// Is makes errors.Is(err, ErrIntegrity) true for any IntegrityError.
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}

func integrity(kind CommandKind, format string, args ...any) *IntegrityError {
	return &IntegrityError{Command: kind, Detail: fmt.Sprintf(format, args...)}
}

// EvaluationError wraps the failure of a single node's evaluator.
// It is recorded against the node and never aborts an evaluation pass.
type EvaluationError struct {
	// NodeID is the node whose evaluation failed.
	NodeID NodeID
	// NodeType is the node's type tag.
	NodeType string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("node %s (%s): %v", e.NodeID, e.NodeType, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic raised by a node evaluator.
type PanicError struct {
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("evaluator panicked: %v", e.Value)
}
