package domain

import "errors"

// Sentinel errors for the outcomes handlers have to distinguish. The HTTP
// layer maps these to status codes; anything else is a 500 with a generic
// message.
var (
	// ErrCardNotAvailable covers both "no such cardholder" and "cardholder
	// not active". The two cases must stay indistinguishable to the caller
	// so a CURP probe cannot reveal card status.
	ErrCardNotAvailable = errors.New("cardholder not available")

	// ErrAccountExists is returned when the cardholder already has linked
	// credentials. This is the one case that deliberately reveals more.
	ErrAccountExists = errors.New("cardholder already has an account")

	// ErrAlreadyRegistered is returned when the requested username or the
	// CURP is already taken by an existing account.
	ErrAlreadyRegistered = errors.New("username or curp already registered")

	// ErrWindowExpired is returned when provisioning is attempted without a
	// live window. Surfaced with the same status as ErrCardNotAvailable.
	ErrWindowExpired = errors.New("provisioning window expired")

	ErrRateLimited = errors.New("too many lookup attempts")

	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrInvalidOTP = errors.New("invalid or expired one-time code")

	ErrNotFound = errors.New("not found")
)

// ValidationError reports malformed input. It is always detected before
// any storage access.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func Validation(msg string) error {
	return &ValidationError{Message: msg}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
