package memory

import (
	"errors"
	"fmt"
)

// ErrorCode tags every failure the storage engine can report. Callers
// dispatch on the code rather than on error message text.
type ErrorCode string

const (
	// Memory file operations
	CodeReadFailed  ErrorCode = "READ_FAILED"
	CodeWriteFailed ErrorCode = "WRITE_FAILED"

	// Index maintenance
	CodeIndexUpdateFailed ErrorCode = "INDEX_UPDATE_FAILED"

	// Category index operations
	CodeStorageError ErrorCode = "STORAGE_ERROR"

	// Frontmatter codec
	CodeMissingFrontmatter ErrorCode = "MISSING_FRONTMATTER"
	CodeInvalidFrontmatter ErrorCode = "INVALID_FRONTMATTER"
	CodeInvalidTags        ErrorCode = "INVALID_TAGS"
	CodeInvalidSource      ErrorCode = "INVALID_SOURCE"
	CodeInvalidTimestamp   ErrorCode = "INVALID_TIMESTAMP"
	CodeMissingField       ErrorCode = "MISSING_FIELD"

	// Path containment
	CodePathEscapesRoot ErrorCode = "PATH_ESCAPES_ROOT"
)

// Error is the structured error descriptor returned by every engine
// operation. Expected failure modes are always reported through this type;
// the engine never panics for them.
type Error struct {
	Code  ErrorCode
	Op    string // operation that failed, e.g. "write", "reindex"
	Path  string // slug or category path involved, if any
	Field string // metadata field for codec errors
	Line  int    // 1-based line number for frontmatter scan failures
	Err   error  // underlying cause, if any
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("memory: %s", e.Code)
	if e.Op != "" {
		msg = fmt.Sprintf("memory: %s [%s]", e.Code, e.Op)
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" path=%s", e.Path)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" field=%s", e.Field)
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" line=%d", e.Line)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the ErrorCode from err, or "" if err does not carry one.
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// tagError attaches an operation's code to a plain error, leaving errors
// that already carry a code untouched.
func tagError(code ErrorCode, op, path string, err error) error {
	if CodeOf(err) != "" {
		return err
	}
	return &Error{Code: code, Op: op, Path: path, Err: err}
}

// fieldMissing reports a required frontmatter field that was absent.
func fieldMissing(field string) *Error {
	return &Error{Code: CodeMissingField, Field: field, Err: fmt.Errorf("required field absent")}
}

// fieldInvalid reports a frontmatter field that was present but malformed.
func fieldInvalid(code ErrorCode, field string, cause error) *Error {
	return &Error{Code: code, Field: field, Err: cause}
}
