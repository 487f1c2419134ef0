package apperrors

import "errors"

// Error classes shared by controllers and handlers. Controllers wrap these with
// logger.ErrorWithType so handlers can map them to HTTP statuses with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation error")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrCreation          = errors.New("creation failed")
	ErrUpdate            = errors.New("update failed")
	ErrTransport         = errors.New("transport failure")
)

// IsPermanent reports whether err belongs to a class that must never be
// retried (the caller has to correct the request instead).
func IsPermanent(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalidTransition)
}
