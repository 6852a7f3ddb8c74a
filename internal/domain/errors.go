package domain

import "fmt"

// ConfigurationError is fatal: the pattern registry or a memo type is
// malformed in a way no retry can fix.
type ConfigurationError struct {
	Reason string
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// SynthesisError means a reasoning call failed or a required output marker
// was missing on a critical extraction path. Retryable at the caller's
// discretion.
type SynthesisError struct {
	Stage string
	Err   error
}

func (e SynthesisError) Error() string {
	return fmt.Sprintf("synthesis failed at %s: %v", e.Stage, e.Err)
}

func (e SynthesisError) Unwrap() error { return e.Err }

// HandshakeRequiredError signals that encryption was requested but no
// completed key exchange exists between the parties. Callers trigger an
// exchange instead of treating this as an opaque failure.
type HandshakeRequiredError struct {
	Local  string
	Remote string
}

func (e HandshakeRequiredError) Error() string {
	return fmt.Sprintf("handshake required between %s and %s", e.Local, e.Remote)
}

// InfrastructureError wraps a collaborator I/O failure during validation or
// pairing. It must never be reported as a business rejection.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e InfrastructureError) Error() string {
	return fmt.Sprintf("infrastructure failure during %s: %v", e.Op, e.Err)
}

func (e InfrastructureError) Unwrap() error { return e.Err }
