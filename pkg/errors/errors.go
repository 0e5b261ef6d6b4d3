// Package errors defines the unified error taxonomy for the cache core.
// Every error the core raises itself carries one of the Code values
// below (file-system errors from snapshot/restore pass through as is);
// callers (in particular the tool dispatcher) translate a Code into an
// isError envelope rather than inspecting error strings.
package errors

import "fmt"

// Code identifies a class of cache error.
type Code string

const (
	// CodeInvalidInput marks a parameter schema violation: missing
	// required fields, wrong primitive types, or out-of-range values.
	CodeInvalidInput Code = "invalid_input"

	// CodeInvalidShape marks an embedding whose length does not match
	// the configured dimension.
	CodeInvalidShape Code = "invalid_shape"

	// CodeCorruptedPayload marks a decompression or deserialization
	// failure. The controller treats this as a miss and deletes the
	// entry; it is never a panic.
	CodeCorruptedPayload Code = "corrupted_payload"

	// CodeBackendUnavailable marks a vector index backend that failed
	// to initialize at construction time.
	CodeBackendUnavailable Code = "backend_unavailable"

	// CodeEmbeddingUnavailable marks an embedder that returned no
	// vector or failed; cache_store must not insert a zero vector.
	CodeEmbeddingUnavailable Code = "embedding_unavailable"

	// CodeNotFound is internal control flow and should never be
	// returned across a package boundary as an error value.
	CodeNotFound Code = "not_found"
)

// CacheError is the concrete error type returned by the cache core.
type CacheError struct {
	Code    Code
	Message string
	// Cause is the underlying error, if any (e.g. a decompression failure).
	Cause error
}

// Error implements the error interface.
func (e *CacheError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap allows errors.Is/errors.As to see through to Cause.
func (e *CacheError) Unwrap() error {
	return e.Cause
}

// NewInvalidInput creates a CodeInvalidInput error.
func NewInvalidInput(message string) *CacheError {
	return &CacheError{Code: CodeInvalidInput, Message: message}
}

// NewInvalidShape creates a CodeInvalidShape error.
func NewInvalidShape(message string) *CacheError {
	return &CacheError{Code: CodeInvalidShape, Message: message}
}

// NewCorruptedPayload creates a CodeCorruptedPayload error wrapping cause.
func NewCorruptedPayload(message string, cause error) *CacheError {
	return &CacheError{Code: CodeCorruptedPayload, Message: message, Cause: cause}
}

// NewBackendUnavailable creates a CodeBackendUnavailable error.
func NewBackendUnavailable(message string) *CacheError {
	return &CacheError{Code: CodeBackendUnavailable, Message: message}
}

// NewEmbeddingUnavailable creates a CodeEmbeddingUnavailable error.
func NewEmbeddingUnavailable(message string) *CacheError {
	return &CacheError{Code: CodeEmbeddingUnavailable, Message: message}
}

// ErrNotFound is the internal not-found sentinel used within the cache
// core's own control flow (e.g. metadata store lookups). It should not
// cross a package boundary as an error value — package APIs report "not
// found" via a bool or nil return instead.
var ErrNotFound = &CacheError{Code: CodeNotFound, Message: "not found"}

// CodeOf extracts the Code from err if it is (or wraps) a *CacheError.
func CodeOf(err error) (Code, bool) {
	for err != nil {
		if ce, ok := err.(*CacheError); ok {
			return ce.Code, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return "", false
		}
		err = u.Unwrap()
	}
	return "", false
}
