package dispatch

import (
	"fmt"
	"strings"
)

// QueryError is a failed layer query. Fatal to the operation that issued
// it: a failed maintenance query aborts the run, a failed digest query
// aborts the digest.
type QueryError struct {
	Layer string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("dispatch: query %s layer: %v", e.Layer, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// UploadError is a failed batch submission. Fatal to the run; there is no
// partial state worth preserving, the next cycle re-covers the window.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("dispatch: upload batch: %v", e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// TransformError is a per-record failure between fetch and build: a
// missing feature reference, an unresolvable geometry, an unconfigured
// code. The record is skipped and logged; the run continues.
type TransformError struct {
	RecordID int64
	Err      error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("dispatch: transform record %d: %v", e.RecordID, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// ValidationError is a schema mismatch on a built assignment. Skipped and
// logged like a TransformError.
type ValidationError struct {
	RecordID int64
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("dispatch: validate record %d: %s", e.RecordID, strings.Join(e.Problems, "; "))
}

// AttachmentError is a failed attachment transfer. Best-effort: logged,
// never escalated past the reconciler.
type AttachmentError struct {
	SourceID int64
	TargetID int64
	Err      error
}

func (e *AttachmentError) Error() string {
	return fmt.Sprintf("dispatch: transfer attachments %d -> %d: %v", e.SourceID, e.TargetID, e.Err)
}

func (e *AttachmentError) Unwrap() error { return e.Err }
