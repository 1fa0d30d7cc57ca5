// Package errors provides the typed failure taxonomy shared by every engine component.
//
// Each failure is an *Error carrying a machine-readable Code. Codes belong to exactly
// one Kind, and the Kind decides how a failure propagates: transient failures are
// retried by the resilience layer, everything else is surfaced to the caller as-is.
//
// Usage:
//
//	// In engine components - return typed errors
//	if isRecipient {
//	    return errors.ErrRecipientCannotClaim
//	}
//
//	// In callers - match with errors.Is or switch on the Kind
//	if errors.Is(err, errors.ErrAlreadyClaimed) { ... }
//	switch errors.KindOf(err) {
//	case errors.KindConflict: ...
//	}
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Kind groups codes by propagation policy.
type Kind string

// Error kinds.
const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindConflict      Kind = "conflict"
	KindNotFound      Kind = "not_found"
	KindTransient     Kind = "transient"
	KindCircuitOpen   Kind = "circuit_open"
	KindInternal      Kind = "internal"
)

// Code represents a machine-readable failure code.
type Code string

// Failure codes. One per failure kind the engine exposes.
const (
	CodeInvalidArgument         Code = "INVALID_ARGUMENT"
	CodeNoAvailableMembers      Code = "NO_AVAILABLE_MEMBERS"
	CodeNeedAtLeastTwoMembers   Code = "NEED_AT_LEAST_TWO_MEMBERS"
	CodeNoItemsInList           Code = "NO_ITEMS_IN_LIST"
	CodeNotAMember              Code = "NOT_A_MEMBER"
	CodeNotAuthorized           Code = "NOT_AUTHORIZED"
	CodeRecipientCannotClaim    Code = "RECIPIENT_CANNOT_CLAIM"
	CodeNotClaimedByYou         Code = "NOT_CLAIMED_BY_YOU"
	CodeCannotSplitOwnClaim     Code = "CANNOT_SPLIT_OWN_CLAIM"
	CodeAlreadyClaimed          Code = "ALREADY_CLAIMED"
	CodeDuplicatePendingRequest Code = "DUPLICATE_PENDING_REQUEST"
	CodeAlreadyResolved         Code = "ALREADY_RESOLVED"
	CodeNotFound                Code = "NOT_FOUND"
	CodeItemNotClaimed          Code = "ITEM_NOT_CLAIMED"
	CodeTransient               Code = "TRANSIENT"
	CodeCircuitOpen             Code = "CIRCUIT_OPEN"
	CodeInternal                Code = "INTERNAL"
)

// Kind returns the kind a code belongs to.
func (c Code) Kind() Kind {
	switch c {
	case CodeInvalidArgument, CodeNoAvailableMembers, CodeNeedAtLeastTwoMembers, CodeNoItemsInList:
		return KindValidation
	case CodeNotAMember, CodeNotAuthorized, CodeRecipientCannotClaim, CodeNotClaimedByYou, CodeCannotSplitOwnClaim:
		return KindAuthorization
	case CodeAlreadyClaimed, CodeDuplicatePendingRequest, CodeAlreadyResolved:
		return KindConflict
	case CodeNotFound, CodeItemNotClaimed:
		return KindNotFound
	case CodeTransient:
		return KindTransient
	case CodeCircuitOpen:
		return KindCircuitOpen
	default:
		return KindInternal
	}
}

// Error is a typed engine failure.
type Error struct {
	Code    Code
	Message string

	// RetryAfter is set on CircuitOpen failures.
	RetryAfter time.Duration

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Kind returns the kind of this error's code.
func (e *Error) Kind() Kind {
	return e.Code.Kind()
}

// WithCause returns a copy wrapping an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:       e.Code,
		Message:    e.Message,
		RetryAfter: e.RetryAfter,
		cause:      err,
	}
}

// WithMessage returns a copy with a more specific message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{
		Code:       e.Code,
		Message:    msg,
		RetryAfter: e.RetryAfter,
		cause:      e.cause,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrInvalidArgument         = &Error{Code: CodeInvalidArgument, Message: "invalid argument"}
	ErrNoAvailableMembers      = &Error{Code: CodeNoAvailableMembers, Message: "no eligible members to assign"}
	ErrNeedAtLeastTwoMembers   = &Error{Code: CodeNeedAtLeastTwoMembers, Message: "at least two eligible members are required"}
	ErrNoItemsInList           = &Error{Code: CodeNoItemsInList, Message: "list has no items"}
	ErrNotAMember              = &Error{Code: CodeNotAMember, Message: "user is not a member of the event"}
	ErrNotAuthorized           = &Error{Code: CodeNotAuthorized, Message: "not authorized"}
	ErrRecipientCannotClaim    = &Error{Code: CodeRecipientCannotClaim, Message: "list recipients cannot claim items on their own list"}
	ErrNotClaimedByYou         = &Error{Code: CodeNotClaimedByYou, Message: "claim is not held by the caller"}
	ErrCannotSplitOwnClaim     = &Error{Code: CodeCannotSplitOwnClaim, Message: "cannot request to split your own claim"}
	ErrAlreadyClaimed          = &Error{Code: CodeAlreadyClaimed, Message: "item already claimed"}
	ErrDuplicatePendingRequest = &Error{Code: CodeDuplicatePendingRequest, Message: "a pending split request already exists"}
	ErrAlreadyResolved         = &Error{Code: CodeAlreadyResolved, Message: "split request already resolved"}
	ErrNotFound                = &Error{Code: CodeNotFound, Message: "not found"}
	ErrItemNotClaimed          = &Error{Code: CodeItemNotClaimed, Message: "item is not claimed"}
	ErrTransient               = &Error{Code: CodeTransient, Message: "transient failure"}
	ErrCircuitOpen             = &Error{Code: CodeCircuitOpen, Message: "circuit open"}
	ErrInternal                = &Error{Code: CodeInternal, Message: "internal error"}
)

// New creates an error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf creates an error with the given code and a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validationf creates an invalid argument error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return Newf(CodeInvalidArgument, format, args...)
}

// NotFoundf creates a not found error with a formatted message.
func NotFoundf(format string, args ...any) *Error {
	return Newf(CodeNotFound, format, args...)
}

// Transient marks err as a retryable infrastructure failure.
func Transient(err error) *Error {
	return ErrTransient.WithCause(err)
}

// CircuitOpen creates a fail-fast error carrying a retry-after hint.
func CircuitOpen(dependency string, retryAfter time.Duration) *Error {
	return &Error{
		Code:       CodeCircuitOpen,
		Message:    fmt.Sprintf("circuit open for %s", dependency),
		RetryAfter: retryAfter,
	}
}

// CodeOf returns the code of the first *Error in err's chain.
// Errors outside the taxonomy report CodeInternal; nil reports "".
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// KindOf returns the kind of err, following the same rules as CodeOf.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return CodeOf(err).Kind()
}

// IsTransient reports whether err is tagged as a transient failure.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// RetryAfterOf returns the retry-after hint carried by a CircuitOpen error, or zero.
func RetryAfterOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) && e.Code == CodeCircuitOpen {
		return e.RetryAfter
	}
	return 0
}
