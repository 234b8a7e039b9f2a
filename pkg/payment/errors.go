package payment

import "fmt"

// ValidationError reports bad caller input (phone format, missing amount).
// It is recoverable by the user and never reaches the provider.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ConfigurationError means M-Pesa is not configured or is disabled in the
// site settings. Callers should show a generic "payment method unavailable"
// message.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "mpesa not configured: " + e.Reason
}

// AuthenticationError means Daraja rejected the credential exchange. Status
// lets an operator tell bad credentials apart from a wrong environment.
type AuthenticationError struct {
	Status int
	Detail string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("mpesa auth failed (status %d): %s", e.Status, e.Detail)
}

// OperatorHint gives a diagnosis an operator can act on.
func (e *AuthenticationError) OperatorHint() string {
	switch e.Status {
	case 400:
		return "invalid credentials; check the consumer key and secret in admin settings"
	case 401:
		return "unauthorized; credentials may be expired or belong to the wrong environment"
	default:
		return fmt.Sprintf("unexpected status %d from the OAuth endpoint", e.Status)
	}
}

// InitiationError means the provider accepted our credentials but rejected
// the push itself. Description is the provider's own text and is actionable
// by the end user, so it is surfaced verbatim.
type InitiationError struct {
	Code        string
	Description string
}

func (e *InitiationError) Error() string {
	if e.Description != "" {
		return e.Description
	}
	return "failed to initiate payment (code " + e.Code + ")"
}
