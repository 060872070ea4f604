package orchestrator

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/wallet-orchestrator/pkg/classifier"
)

// Status is the lifecycle status of a transaction record.
type Status string

const (
	StatusSubmitted      Status = "submitted"
	StatusConfirmingPoll Status = "confirming_poll"
	StatusConfirmed      Status = "confirmed"
	StatusFailed         Status = "failed"
)

// Terminal reports whether no further transition can happen.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

var (
	// ErrInvalidAddress is returned for an address that does not match addressPattern.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrZeroBalance is returned when a request requires funds and none are available.
	ErrZeroBalance = errors.New("no balance available")
	// ErrEmptyFunction is returned when a request or fallback names no function.
	ErrEmptyFunction = errors.New("function identifier is required")
	// ErrDuplicateFunction is returned when a fallback chain repeats a function.
	ErrDuplicateFunction = errors.New("function repeated in fallback chain")
	// ErrEmptyPipeline is returned by SubmitPipeline without steps.
	ErrEmptyPipeline = errors.New("pipeline has no steps")
)

var addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// ValidAddress reports whether s is a 0x-prefixed 20-byte hex address.
func ValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// Address marks a call argument as an address; it is validated and converted
// to common.Address before sending.
type Address string

// Call is one function invocation with its arguments.
type Call struct {
	FunctionID string
	Args       []any
}

// Request describes a transaction and the fallbacks to try, in order, when
// the contract does not recognise the function.
type Request struct {
	ID         string
	Target     string
	FunctionID string
	Args       []any
	// NativeValue is the amount of native currency sent with the call.
	NativeValue *big.Int
	Fallbacks   []Call
	// AvailableBalance, when set, must be positive for the request to be sent.
	AvailableBalance *big.Int
}

func (r Request) calls() []Call {
	out := make([]Call, 0, len(r.Fallbacks)+1)
	out = append(out, Call{FunctionID: r.FunctionID, Args: r.Args})
	return append(out, r.Fallbacks...)
}

// ClassifiedError is a send failure with its classification.
type ClassifiedError struct {
	Kind       classifier.Kind `json:"kind"`
	FunctionID string          `json:"function"`
	Message    string          `json:"message"`
	Err        error           `json:"-"`
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.FunctionID, e.Kind, e.Err)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Record is the outcome of a submitted request or pipeline.
type Record struct {
	ID             string           `json:"id"`
	RequestID      string           `json:"request_id,omitempty"`
	SubmissionHash *common.Hash     `json:"submission_hash,omitempty"`
	Status         Status           `json:"status"`
	Attempts       int              `json:"attempts"`
	Polls          int              `json:"polls"`
	FunctionUsed   string           `json:"function_used,omitempty"`
	Assumed        bool             `json:"assumed"`
	Error          *ClassifiedError `json:"error,omitempty"`
	SubmittedAt    time.Time        `json:"submitted_at,omitempty"`
	FinishedAt     time.Time        `json:"finished_at,omitempty"`
	Steps          []*Record        `json:"steps,omitempty"`
}
