package verify

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// CodeAlreadyResolved: the transaction is in the CompletedSet.
	CodeAlreadyResolved ErrorCode = "ALREADY_RESOLVED"
	// CodeInFlight: another operation holds the transaction's lock.
	CodeInFlight ErrorCode = "OPERATION_IN_FLIGHT"
	// CodeValidation: cashier input was rejected before anything was sent.
	CodeValidation ErrorCode = "VALIDATION"
	// CodeBelowMinimum: the amount is below the minimum deposit.
	CodeBelowMinimum ErrorCode = "BELOW_MINIMUM"
	// CodeInvalidTransition: the action is not allowed in the current state.
	CodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	// CodeSendFailed: the message could not be written to the connection.
	CodeSendFailed ErrorCode = "SEND_FAILED"
)

// Error is returned by engine operations.
type Error struct {
	Code          ErrorCode
	TransactionID string
	Message       string
	Err           error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s (transaction=%s)", e.Code, e.Message, e.TransactionID)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code ErrorCode, id, msg string) *Error {
	return &Error{Code: code, TransactionID: id, Message: msg}
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsAlreadyResolved reports whether err rejected an action on a resolved
// transaction.
func IsAlreadyResolved(err error) bool { return hasCode(err, CodeAlreadyResolved) }

// IsInFlight reports whether err rejected an action because another one was
// in flight.
func IsInFlight(err error) bool { return hasCode(err, CodeInFlight) }

// IsValidation reports whether err is a cashier input error, including amounts
// below the minimum.
func IsValidation(err error) bool {
	return hasCode(err, CodeValidation) || hasCode(err, CodeBelowMinimum)
}

// IsBelowMinimum reports whether err rejected an amount below the minimum.
func IsBelowMinimum(err error) bool { return hasCode(err, CodeBelowMinimum) }

// IsInvalidTransition reports whether err rejected an action for the current
// state.
func IsInvalidTransition(err error) bool { return hasCode(err, CodeInvalidTransition) }

// IsSendFailed reports whether err is a connection failure while sending.
func IsSendFailed(err error) bool { return hasCode(err, CodeSendFailed) }
