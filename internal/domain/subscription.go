package domain

import "time"

// Subscription is the persisted lifecycle record for a subscriber,
// updated by webhook events (renewal, suspension, deletion).
// PK: operator, SK: subject.
type Subscription struct {
	Operator  string     `json:"operator" dynamodbav:"operator"`
	Subject   string     `json:"subject" dynamodbav:"subject"`
	ServiceID string     `json:"service_id" dynamodbav:"service_id"`
	Status    string     `json:"status" dynamodbav:"status"` // canonical
	CreatedAt time.Time  `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" dynamodbav:"updated_at"`
	RenewedAt *time.Time `json:"renewed_at,omitempty" dynamodbav:"renewed_at,omitempty"`
}

// BillingRecord is the persisted trace of a flow attempt or completion.
// Written fire-and-forget; a write failure never fails the flow.
// PK: record_id.
type BillingRecord struct {
	RecordID      string    `json:"record_id" dynamodbav:"record_id"`
	Operator      string    `json:"operator" dynamodbav:"operator"`
	Subject       string    `json:"subject" dynamodbav:"subject"`
	Operation     Operation `json:"operation" dynamodbav:"operation"`
	Phase         string    `json:"phase" dynamodbav:"phase"` // "attempt" | "completion"
	Outcome       Outcome   `json:"outcome,omitempty" dynamodbav:"outcome,omitempty"`
	Status        string    `json:"status,omitempty" dynamodbav:"status,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty" dynamodbav:"transaction_id,omitempty"`
	AmountMinor   int64     `json:"amount_minor,omitempty" dynamodbav:"amount_minor,omitempty"`
	CreatedAt     time.Time `json:"created_at" dynamodbav:"created_at"`
}

// AnonymousRefMapping stores the subject→reference association for
// operators that return anonymous references, so that later lifecycle
// operations (termination) can resolve the reference.
// PK: operator, SK: anonymous_id.
type AnonymousRefMapping struct {
	Operator    string    `json:"operator" dynamodbav:"operator"`
	AnonymousID string    `json:"anonymous_id" dynamodbav:"anonymous_id"`
	Reference   string    `json:"reference" dynamodbav:"reference"`
	ServiceID   string    `json:"service_id" dynamodbav:"service_id"`
	CreatedAt   time.Time `json:"created_at" dynamodbav:"created_at"`
}
