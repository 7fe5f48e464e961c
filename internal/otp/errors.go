package otp

import "errors"

var (
	ErrNotFound          = errors.New("otp: no active code")
	ErrExpired           = errors.New("otp: code expired")
	ErrAttemptsExhausted = errors.New("otp: attempts exhausted")
	ErrMismatch          = errors.New("otp: code mismatch")
	ErrInvalidRecipient  = errors.New("otp: recipient is required")

	// ErrDelivery and ErrStore mark faults in a collaborator rather than an
	// expected verification outcome.
	ErrDelivery = errors.New("otp: delivery failed")
	ErrStore    = errors.New("otp: store failure")
)

const (
	msgSendFailed      = "Failed to send OTP. Please try again."
	msgVerifyFailed    = "Verification failed. Please try again."
	msgNotFound        = "No OTP found. Please request a new code."
	msgExpired         = "OTP has expired. Please request a new code."
	msgExhausted       = "Too many incorrect attempts. Please request a new code."
	msgMaxReached      = "Incorrect code. Maximum attempts reached."
	msgVerified        = "Email verified successfully!"
	msgRecipientNeeded = "A recipient email is required."
)
