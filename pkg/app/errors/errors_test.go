package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIs(t *testing.T) {
	base := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", SubmissionError(base, "rejected"))

	if !Is(err, CategorySubmission) {
		t.Fatal("expected wrapped error to be a submission error")
	}
	if Is(err, CategoryValidation) {
		t.Fatal("submission error must not match validation category")
	}
	if !errors.Is(err, base) {
		t.Fatal("expected cause to be reachable through Unwrap")
	}
	if Is(base, CategoryGeneralError) {
		t.Fatal("plain errors are not service errors")
	}
}

func TestCategoryOf(t *testing.T) {
	if got := CategoryOf(nil); got != CategoryNoError {
		t.Errorf("expected CategoryNoError, got %s", got)
	}
	if got := CategoryOf(errors.New("x")); got != CategoryGeneralError {
		t.Errorf("expected CategoryGeneralError, got %s", got)
	}
	if got := CategoryOf(ConnectionError(nil, "no wallet")); got != CategoryConnection {
		t.Errorf("expected CategoryConnection, got %s", got)
	}
}

func TestNilCauseUsesMessage(t *testing.T) {
	err := ValidationError(nil, "invalid address")
	if err.Error() != "validation failed: invalid address" {
		t.Errorf("unexpected error text %q", err.Error())
	}
}

func TestStatusCode(t *testing.T) {
	tests := map[Category]int{
		CategoryValidation:       http.StatusBadRequest,
		CategoryConnection:       http.StatusConflict,
		CategoryRead:             http.StatusBadGateway,
		CategorySubmission:       http.StatusUnprocessableEntity,
		CategoryPollTimeout:      http.StatusAccepted,
		CategoryUnauthorized:     http.StatusUnauthorized,
		CategoryResourceNotFound: http.StatusNotFound,
		CategoryGeneralError:     http.StatusInternalServerError,
	}
	for cat, want := range tests {
		if got := (ServiceError{Category: cat}).StatusCode(); got != want {
			t.Errorf("%s: expected %d, got %d", cat, want, got)
		}
	}
}
