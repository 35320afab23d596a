package engine

import (
	"errors"
	"fmt"
)

// NodeError is a fatal failure while evaluating one grid node. It aborts the
// run; recoverable outcomes (invalid, filtered, skipped, failed after retries)
// are counted in Stats instead.
//
// NodeError carries the node id and, once decoded, its parameter values so a
// failed run can be reproduced with `gridmaker decode`.
type NodeError struct {
	// Code identifies the stage that failed.
	Code NodeErrorCode

	// NodeID is the grid node being evaluated.
	NodeID int64

	// Values are the decoded parameters, nil if decoding failed.
	Values []float64

	// Err is the underlying error.
	Err error
}

// NodeErrorCode categorizes node errors.
type NodeErrorCode string

const (
	// ErrCodeDecode indicates the node id could not be decoded.
	ErrCodeDecode NodeErrorCode = "DECODE"

	// ErrCodeSimulate indicates a non-recoverable simulator error.
	ErrCodeSimulate NodeErrorCode = "SIMULATE"

	// ErrCodeStore indicates the result could not be committed.
	ErrCodeStore NodeErrorCode = "STORE"
)

// Error implements the error interface.
func (e *NodeError) Error() string {
	if e.Values != nil {
		return fmt.Sprintf("%s: node %d %v: %v", e.Code, e.NodeID, e.Values, e.Err)
	}
	return fmt.Sprintf("%s: node %d: %v", e.Code, e.NodeID, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// IsNodeError reports whether err is a NodeError with the given code.
// Uses errors.As to handle wrapped errors.
func IsNodeError(err error, code NodeErrorCode) bool {
	var ne *NodeError
	if errors.As(err, &ne) {
		return ne.Code == code
	}
	return false
}
