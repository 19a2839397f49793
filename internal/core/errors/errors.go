package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type ErrorCode string

const (
	CodeMalformedInput  ErrorCode = "MALFORMED_INPUT"
	CodeBaselineMissing ErrorCode = "BASELINE_MISSING"
	CodeValidationError ErrorCode = "VALIDATION_ERROR"
	CodeLocked          ErrorCode = "LOCKED"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// DomainError carries a machine-readable code, the offending entity in Context,
// and a remediation hint for the operator.
type DomainError struct {
	Code        ErrorCode
	Message     string
	Remediation string
	Err         error
	Context     map[string]interface{}
}

const (
	CtxPath      = "path"
	CtxOperation = "operation"
	CtxPackage   = "package"
	CtxModule    = "module"
	CtxFrom      = "from"
	CtxTo        = "to"
	CtxMetric    = "metric"
)

func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *DomainError) WithRemediation(hint string) *DomainError {
	e.Remediation = hint
	return e
}

func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		msg += " (" + strings.Join(parts, " ") + ")"
	}
	if e.Remediation != "" {
		msg += "; " + e.Remediation
	}
	return msg
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func New(code ErrorCode, msg string) *DomainError {
	return &DomainError{Code: code, Message: msg}
}

func Wrap(err error, code ErrorCode, msg string) *DomainError {
	return &DomainError{Code: code, Message: msg, Err: err}
}

// Malformed builds the fatal input error raised while loading a graph.
func Malformed(msg string) *DomainError {
	return New(CodeMalformedInput, msg)
}

// BaselineMissing reports an operation that needs a captured baseline.
func BaselineMissing(path string) *DomainError {
	return New(CodeBaselineMissing, "no baseline captured").
		WithContext(CtxPath, path).
		WithRemediation("run `archratchet capture` first")
}

func AddContext(err error, key string, value interface{}) error {
	var de *DomainError
	if errors.As(err, &de) {
		de.WithContext(key, value)
		return de
	}
	return &DomainError{
		Code:    CodeInternal,
		Message: "wrapped error",
		Err:     err,
		Context: map[string]interface{}{key: value},
	}
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Remediation returns the remediation hint carried by err, if any.
func Remediation(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Remediation
	}
	return ""
}
