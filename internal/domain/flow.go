package domain

import "time"

// Fixed validity windows. Expiry is enforced by comparing the clock to
// the stored deadline at lookup time, not by a guaranteed-to-fire timer.
const (
	PendingCodeTTL     = 120 * time.Second
	CheckoutSessionTTL = 10 * time.Minute
	FlowReferenceTTL   = 30 * time.Minute

	MaxCodeAttempts = 3
)

// PendingCode tracks an issued one-time code, keyed (operator, subject).
type PendingCode struct {
	Operator  string
	Subject   string
	Operation Operation
	// AmountMinor is retained for the completion call on charge operations.
	AmountMinor int64
	ServiceID   string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Attempts    int
}

// CheckoutSession tracks a redirect authorization in progress, keyed by a
// generated session id. Consumed exactly once by the token exchange.
type CheckoutSession struct {
	SessionID   string
	Operator    string
	Operation   Operation
	Merchant    string
	ServiceID   string
	ReturnURL   string
	AmountMinor int64
	Locale      string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// FlowKind classifies why a flow is waiting for out-of-band resolution.
type FlowKind string

const (
	FlowAsyncWebhook       FlowKind = "async-webhook-pending"
	FlowAnonymousReference FlowKind = "anonymous-reference-pending"
	FlowAsyncNotification  FlowKind = "async-notification-pending"
)

// FlowReference correlates an out-of-band completion back to the request
// that originated it, keyed (operator, correlation key). The correlation
// key is a correlator, transaction id or session id depending on the
// protocol variant. Removed on first resolution so a stale or duplicate
// webhook cannot double-apply.
type FlowReference struct {
	Operator       string
	CorrelationKey string
	Kind           FlowKind
	CreatedAt      time.Time
	ExpiresAt      time.Time

	Resolved bool
	Result   *NormalizedResult
}

// FlowResultKind tells the caller what to do next after initiating a flow.
type FlowResultKind string

const (
	FlowAwaitCodeEntry  FlowResultKind = "AWAIT_CODE_ENTRY"
	FlowRedirect        FlowResultKind = "REDIRECT"
	FlowLoadFraudScript FlowResultKind = "LOAD_FRAUD_SCRIPT"
	FlowPendingWebhook  FlowResultKind = "PENDING_WEBHOOK"
	FlowCompleted       FlowResultKind = "COMPLETED"
)

// FlowResult is returned by flow initiation and completion operations.
type FlowResult struct {
	Kind           FlowResultKind    `json:"kind"`
	Operator       string            `json:"operator"`
	SessionID      string            `json:"session_id,omitempty"`
	RedirectURL    string            `json:"redirect_url,omitempty"`
	CorrelationKey string            `json:"correlation_key,omitempty"`
	ExpiresAt      time.Time         `json:"expires_at,omitempty"`
	Result         *NormalizedResult `json:"result,omitempty"`
}
