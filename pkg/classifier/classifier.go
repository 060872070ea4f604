// Package classifier maps raw provider and node failure messages onto a
// small, stable set of failure kinds.
package classifier

import "strings"

// Kind is the classified failure category of a raw error message.
type Kind string

const (
	UserRejected          Kind = "user_rejected"
	SelectorNotRecognized Kind = "selector_not_recognized"
	InsufficientFunds     Kind = "insufficient_funds"
	NonceError            Kind = "nonce_error"
	ContractReverted      Kind = "contract_reverted"
	GasEstimationFailed   Kind = "gas_estimation_failed"
	NetworkError          Kind = "network_error"
	Unknown               Kind = "unknown"
)

type rule struct {
	kind    Kind
	needles []string
}

// rules are evaluated in order, first match wins. The selector rule sits ahead
// of the revert rule because nodes report a missing selector as
// "execution reverted: function selector was not recognized".
var rules = []rule{
	{UserRejected, []string{"user rejected", "user denied", "rejected by user", "request rejected"}},
	{SelectorNotRecognized, []string{"function selector was not recognized"}},
	{InsufficientFunds, []string{"insufficient funds"}},
	{NonceError, []string{"nonce"}},
	{ContractReverted, []string{"execution reverted", "transaction reverted"}},
	{GasEstimationFailed, []string{"gas"}},
	{NetworkError, []string{
		"dial tcp",
		"connection refused",
		"connection reset",
		"no such host",
		"timeout",
		"context deadline exceeded",
		"404",
		"eof",
		"network",
	}},
}

// Classify returns the Kind for a raw failure message. Matching is
// case-insensitive; an empty or unmatched message yields Unknown.
func Classify(raw string) Kind {
	msg := strings.ToLower(strings.TrimSpace(raw))
	if msg == "" {
		return Unknown
	}
	for _, r := range rules {
		for _, needle := range r.needles {
			if strings.Contains(msg, needle) {
				return r.kind
			}
		}
	}
	return Unknown
}

// ClassifyError is Classify on err.Error(); a nil error is Unknown.
func ClassifyError(err error) Kind {
	if err == nil {
		return Unknown
	}
	return Classify(err.Error())
}

// Message returns the user-facing description of the kind.
func (k Kind) Message() string {
	switch k {
	case UserRejected:
		return "transaction was cancelled by the user"
	case SelectorNotRecognized:
		return "contract does not support the requested function"
	case InsufficientFunds:
		return "insufficient funds to pay for the transaction"
	case NonceError:
		return "transaction nonce is out of sync, refresh and retry"
	case ContractReverted:
		return "transaction was rejected by the contract"
	case GasEstimationFailed:
		return "gas estimation failed, the contract call would likely fail"
	case NetworkError:
		return "network is unreachable, check the node connection"
	default:
		return "transaction failed, please retry later"
	}
}

// Retryable reports whether resubmitting the same request can succeed
// without user intervention.
func (k Kind) Retryable() bool {
	return k == NonceError || k == NetworkError
}

// Describe returns a user-facing message for a raw failure, recognising the
// faucet's own revert reason before falling back to the kind message.
func Describe(raw string) string {
	if strings.Contains(strings.ToLower(raw), "faucet empty") {
		return "faucet has no tokens left to send"
	}
	return Classify(raw).Message()
}
