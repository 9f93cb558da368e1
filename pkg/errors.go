package wow

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	BadRequest         ErrorCode = "bad-request"
	NotAvailable       ErrorCode = "not-available"
	NotFound           ErrorCode = "not-found"
	AlreadyExists      ErrorCode = "already-exists"
	DBConflict         ErrorCode = "db-conflict"
	UnknownError       ErrorCode = "unknown-error"
	BackendUnavailable ErrorCode = "backend-unavailable" // daemon or wallet unreachable for a currency
	RPCFailure         ErrorCode = "rpc-failure"         // wallet/daemon call failed or returned malformed data
	MalformedConfig    ErrorCode = "malformed-config"    // missing configuration or unparsable prompt details
	DuplicatePayment   ErrorCode = "duplicate-payment"   // payment identity already recorded
)

type ErrorInfo struct {
	Code    ErrorCode // machine-readble ErrorCode enumeration
	Message string    // human-readable debug message (in production, logged on the server only)
}

func (e *ErrorInfo) Error() string {
	return string(e.Message)
}

func NewErr(code ErrorCode, format string, args ...any) error {
	return &ErrorInfo{Code: code, Message: fmt.Sprintf(format, args...)}
}

func IsNotFoundError(err error) bool {
	return IsError(err, NotFound)
}

func IsAlreadyExistsError(err error) bool {
	return IsError(err, AlreadyExists)
}

func IsDBConflictError(err error) bool {
	return IsError(err, DBConflict)
}

func IsBackendUnavailable(err error) bool {
	return IsError(err, BackendUnavailable)
}

func IsRPCFailure(err error) bool {
	return IsError(err, RPCFailure)
}

func IsDuplicatePayment(err error) bool {
	return IsError(err, DuplicatePayment)
}

// IsError reports whether any error in err's chain is an *ErrorInfo with the given code.
func IsError(err error, ofType ErrorCode) bool {
	var e *ErrorInfo
	if errors.As(err, &e) {
		return e.Code == ofType
	}
	return false
}
