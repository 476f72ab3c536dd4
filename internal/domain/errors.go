package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrUnknownOperator     = errors.New("unknown operator")
	ErrUnsupportedProtocol = errors.New("unsupported protocol")
	ErrMissingAmount       = errors.New("missing amount")
	ErrMissingFraudToken   = errors.New("missing fraud token")
	ErrNoPendingCode       = errors.New("no pending code")
	ErrCodeExpired         = errors.New("code expired")
	ErrAttemptsExhausted   = errors.New("attempts exhausted")
	ErrSessionNotFound     = errors.New("session not found")
	ErrReferenceNotFound   = errors.New("reference not found")
	ErrDeleteUnsupported   = errors.New("delete unsupported")
	ErrBadRequest          = errors.New("bad request")
)
