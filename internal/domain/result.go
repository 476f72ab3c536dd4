package domain

import (
	"strings"
	"time"
)

// Outcome classifies a normalized upstream response.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
	OutcomePending Outcome = "pending"
)

// Canonical statuses, independent of any operator's vocabulary.
const (
	StatusActive    = "ACTIVE"
	StatusCharged   = "CHARGED"
	StatusPending   = "PENDING"
	StatusSuspended = "SUSPENDED"
	StatusRemoved   = "REMOVED"
	StatusFailed    = "FAILED"
)

// ErrorDetail carries diagnostic metadata when Outcome is error.
type ErrorDetail struct {
	Category    string `json:"category"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Retryable   bool   `json:"retryable"`
	Remediation string `json:"remediation,omitempty"`
}

// NormalizedResult is the universal return shape for every upstream
// response, whatever the operator's own success/error vocabulary.
type NormalizedResult struct {
	Outcome  Outcome `json:"outcome"`
	Status   string  `json:"status,omitempty"` // canonical
	Operator string  `json:"operator"`

	// Subject may be a phone number, an opaque anonymous reference or a
	// token. When HasAnonymousReference is set it must be propagated
	// opaquely and never treated as a phone number.
	Subject               string `json:"subject,omitempty"`
	HasAnonymousReference bool   `json:"has_anonymous_reference,omitempty"`
	AnonymousID           string `json:"anonymous_id,omitempty"`

	// UpstreamStatus retains the operator's original status term when the
	// canonical status was rewritten.
	UpstreamStatus string `json:"upstream_status,omitempty"`

	TransactionID string `json:"transaction_id,omitempty"`

	IsAsync         bool `json:"is_async,omitempty"`
	RequiresWebhook bool `json:"requires_webhook,omitempty"`

	Error *ErrorDetail `json:"error,omitempty"`

	// Metadata.
	Timestamp time.Time       `json:"timestamp"`
	Currency  string          `json:"currency,omitempty"`
	Country   string          `json:"country,omitempty"`
	Variant   ProtocolVariant `json:"variant,omitempty"`

	// Raw success fields copied verbatim from the upstream payload.
	Fields map[string]string `json:"fields,omitempty"`
}

// AnonymousRefPrefix marks a subject identifier as an opaque anonymous
// reference rather than a phone number.
const AnonymousRefPrefix = "anon:"

// anonymousIDLength is the indexable identifier segment extracted from a reference.
const anonymousIDLength = 30

// IsAnonymousReference reports whether the subject carries the anonymous-reference marker.
func IsAnonymousReference(subject string) bool {
	return strings.HasPrefix(subject, AnonymousRefPrefix)
}

// AnonymousRefID extracts the indexable identifier segment from an
// anonymous reference. Deterministic for a given input; empty string for
// a non-anonymous subject.
func AnonymousRefID(subject string) string {
	if !IsAnonymousReference(subject) {
		return ""
	}
	id := strings.TrimPrefix(subject, AnonymousRefPrefix)
	if len(id) > anonymousIDLength {
		id = id[:anonymousIDLength]
	}
	return id
}
