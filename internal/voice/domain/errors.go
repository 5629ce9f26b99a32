package domain

import "errors"

var (
	// ErrValidation indicates a malformed title, extension list, or number.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates a missing number, call, or owner.
	ErrNotFound = errors.New("resource not found")
	// ErrQuotaExceeded indicates the account holds its full allowance of
	// active numbers.
	ErrQuotaExceeded = errors.New("number quota exceeded")
	// ErrLifetimeCeiling indicates the anti-abuse cap on lifetime numbers
	// (released included) has been reached.
	ErrLifetimeCeiling = errors.New("lifetime number ceiling reached")
	// ErrNoPaymentMethod indicates the billing customer has no usable
	// payment method on file.
	ErrNoPaymentMethod = errors.New("no payment method on file")
	// ErrPayment indicates the billing provider declined or failed the
	// operation. The wrapped message is user-visible so the UI can offer
	// inline card entry.
	ErrPayment = errors.New("payment failed")
	// ErrProvider indicates a telephony provider API failure.
	ErrProvider = errors.New("telephony provider error")
	// ErrStorage indicates an upload or stat failure during recording capture.
	ErrStorage = errors.New("storage error")
)
