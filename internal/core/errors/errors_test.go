package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeNotFound, "resource not found")
		if err.Error() != "[NOT_FOUND] resource not found" {
			t.Errorf("expected [NOT_FOUND] resource not found, got %s", err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("original error")
		err := Wrap(original, CodeInternal, "internal failure")
		expected := "[INTERNAL_ERROR] internal failure: original error"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
		if !errors.Is(err, original) {
			t.Error("expected wrapped error to unwrap to original")
		}
	})

	t.Run("IsCode", func(t *testing.T) {
		var err error = New(CodeValidationError, "invalid input")
		if !IsCode(err, CodeValidationError) {
			t.Error("expected IsCode to return true for CodeValidationError")
		}
		if IsCode(err, CodeNotFound) {
			t.Error("expected IsCode to return false for CodeNotFound")
		}
	})

	t.Run("ContextIsSorted", func(t *testing.T) {
		err := Malformed("edge references unknown module").
			WithContext(CtxTo, "b.ts").
			WithContext(CtxFrom, "a.ts").
			WithRemediation("fix the edge")
		expected := "[MALFORMED_INPUT] edge references unknown module (from=a.ts to=b.ts); fix the edge"
		if err.Error() != expected {
			t.Errorf("expected %q, got %q", expected, err.Error())
		}
	})

	t.Run("BaselineMissing", func(t *testing.T) {
		var err error = BaselineMissing("baseline.json")
		if !IsCode(err, CodeBaselineMissing) {
			t.Fatal("expected BASELINE_MISSING code")
		}
		if !strings.Contains(Remediation(err), "capture") {
			t.Errorf("expected capture remediation, got %q", Remediation(err))
		}
	})

	t.Run("AddContextOnPlainError", func(t *testing.T) {
		err := AddContext(errors.New("boom"), CtxOperation, "check")
		if !IsCode(err, CodeInternal) {
			t.Errorf("expected plain errors to be wrapped as internal, got %v", err)
		}
	})
}
