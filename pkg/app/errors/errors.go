// Package errors contains the failure taxonomy shared by the wallet core and
// the HTTP layer.
package errors

import (
	"errors"
	"net/http"
)

// Category defines error category
type Category int

const (
	CategoryNoError Category = iota
	// CategoryValidation the request was rejected locally before any chain call,
	// for example a malformed address or a zero balance precondition.
	CategoryValidation
	// CategoryConnection the wallet could not be connected, or an operation
	// needs a connection that is not there.
	CategoryConnection
	// CategoryRead an on-chain read failed.
	CategoryRead
	// CategorySubmission a transaction was refused by the wallet, the node or
	// the contract. The wrapped error carries the classified kind.
	CategorySubmission
	// CategoryPollTimeout confirmation polling ran out. Informational only,
	// the transaction is treated as confirmed.
	CategoryPollTimeout
	// CategoryUnauthorized the caller is not authorized to use the API
	CategoryUnauthorized
	// CategoryResourceNotFound the requested resource does not exist
	CategoryResourceNotFound
	// CategoryGeneralError the service failed in an unexpected way
	CategoryGeneralError
)

func (c Category) String() string {
	switch c {
	case CategoryNoError:
		return "CategoryNoError"
	case CategoryValidation:
		return "CategoryValidation"
	case CategoryConnection:
		return "CategoryConnection"
	case CategoryRead:
		return "CategoryRead"
	case CategorySubmission:
		return "CategorySubmission"
	case CategoryPollTimeout:
		return "CategoryPollTimeout"
	case CategoryUnauthorized:
		return "CategoryUnauthorized"
	case CategoryResourceNotFound:
		return "CategoryResourceNotFound"
	default:
		return "CategoryGeneralError"
	}
}

// ServiceError carries a category, a user-facing message and the underlying
// cause, which is only logged.
type ServiceError struct {
	Category Category
	Message  string
	Err      error
}

// Error method to comply with error interface
func (err ServiceError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	return err.Message
}

// Unwrap returns the underlying error
func (err ServiceError) Unwrap() error {
	return err.Err
}

// Is checks that provided error is a ServiceError with desired Category
func Is(err error, cat Category) bool {
	var svcErr *ServiceError
	return errors.As(err, &svcErr) && svcErr.Category == cat
}

// CategoryOf returns the category of err, CategoryGeneralError when err is not
// a ServiceError and CategoryNoError when err is nil.
func CategoryOf(err error) Category {
	if err == nil {
		return CategoryNoError
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Category
	}
	return CategoryGeneralError
}

func newError(cat Category, err error, message, fallback string) error {
	if err == nil {
		err = errors.New(fallback + message)
	}
	return &ServiceError{
		Category: cat,
		Message:  message,
		Err:      err,
	}
}

// ValidationError returns an error with category CategoryValidation
// the error message provided is returned to the user
func ValidationError(err error, message string) error {
	return newError(CategoryValidation, err, message, "validation failed: ")
}

// ConnectionError returns an error with category CategoryConnection
func ConnectionError(err error, message string) error {
	return newError(CategoryConnection, err, message, "connection failed: ")
}

// ReadError returns an error with category CategoryRead
func ReadError(err error, message string) error {
	return newError(CategoryRead, err, message, "read failed: ")
}

// SubmissionError returns an error with category CategorySubmission
func SubmissionError(err error, message string) error {
	return newError(CategorySubmission, err, message, "submission failed: ")
}

// PollTimeoutError returns an error with category CategoryPollTimeout
func PollTimeoutError(err error, message string) error {
	return newError(CategoryPollTimeout, err, message, "poll timeout: ")
}

// UnAuthorizedError returns an error with category CategoryUnauthorized
func UnAuthorizedError(err error, message string) error {
	return newError(CategoryUnauthorized, err, message, "unauthorized: ")
}

// ResourceNotFoundError returns an error with category CategoryResourceNotFound
func ResourceNotFoundError(err error, message string) error {
	return newError(CategoryResourceNotFound, err, message, "resource not found: ")
}

// GeneralError returns a general service error
// this error message sent to the user is "Internal Server Error"
// the error passed is logged in the logger
func GeneralError(err error) error {
	if err == nil {
		err = errors.New("internal server error")
	}
	return &ServiceError{
		Category: CategoryGeneralError,
		Message:  "Internal Server Error",
		Err:      err,
	}
}

// StatusCode returns the HTTP status code for the error category
func (err ServiceError) StatusCode() int {
	switch err.Category {
	case CategoryNoError:
		return http.StatusOK
	case CategoryValidation:
		return http.StatusBadRequest
	case CategoryConnection:
		return http.StatusConflict
	case CategoryRead:
		return http.StatusBadGateway
	case CategorySubmission:
		return http.StatusUnprocessableEntity
	case CategoryPollTimeout:
		return http.StatusAccepted
	case CategoryUnauthorized:
		return http.StatusUnauthorized
	case CategoryResourceNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
