package api

import "fmt"

// Build error codes. Callers switch on Code to tell, for example, an empty
// wallet from an unreachable server.
const (
	ErrInvalidRequest     = "INVALID_REQUEST"
	ErrInvalidAddress     = "INVALID_ADDRESS"
	ErrInvalidKey         = "INVALID_KEY"
	ErrKeyAddressMismatch = "KEY_ADDRESS_MISMATCH"
	ErrNoUTXOs            = "NO_UTXOS"
	ErrInsufficientFunds  = "INSUFFICIENT_FUNDS"
	ErrTooManyInputs      = "TOO_MANY_INPUTS"
	ErrFeeNotConverged    = "FEE_NOT_CONVERGED"
	ErrResolverFailed     = "RESOLVER_FAILED"
	ErrSigningFailed      = "SIGNING_FAILED"
	ErrBroadcastFailed    = "BROADCAST_FAILED"
)

// BuildError is returned by Build and Send.
type BuildError struct {
	Code    string // Error code (e.g., ErrInsufficientFunds)
	Message string // Human-readable error message
	Cause   error  // Underlying error (if any)
}

func (e *BuildError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("build error [%s]: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("build error [%s]: %s", e.Code, e.Message)
}

func (e *BuildError) Unwrap() error {
	return e.Cause
}

func newBuildError(code string, cause error, format string, args ...interface{}) *BuildError {
	return &BuildError{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}
