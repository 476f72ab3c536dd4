package domain

// ProtocolVariant identifies which authorization protocol an operator runs.
// The set is closed: operator behaviors are enumerable, not pluggable.
type ProtocolVariant string

const (
	VariantCodeVerify         ProtocolVariant = "code-verify"
	VariantCodeWithFraudCheck ProtocolVariant = "code-with-fraud-check"
	VariantRedirectCheckout   ProtocolVariant = "redirect-checkout"
	VariantRedirectAnonymous  ProtocolVariant = "redirect-with-anonymous-reference"
	VariantRedirectOrCode     ProtocolVariant = "redirect-or-code"
	VariantRedirectAsync      ProtocolVariant = "redirect-async"
)

// IdentifierFormat describes what kind of subject identifier an operator returns.
type IdentifierFormat string

const (
	FormatPhoneNumber        IdentifierFormat = "phone-number"
	FormatAnonymousToken     IdentifierFormat = "anonymous-token"
	FormatAnonymousReference IdentifierFormat = "anonymous-reference"
)

// Operation is the business operation a flow is run for.
type Operation string

const (
	OperationSubscribe Operation = "subscribe"
	OperationCharge    Operation = "charge"
)

// OperatorCapability is the static per-operator contract: which protocol
// the operator runs, how it identifies subscribers, its numeric limits
// and its feature flags. Loaded once at startup, never mutated.
type OperatorCapability struct {
	ID               string
	Name             string
	Country          string
	Currency         string
	Variant          ProtocolVariant
	IdentifierFormat IdentifierFormat

	// Numeric constraints.
	CodeLength     int
	MaxChargeMinor int64 // charge ceiling in minor currency units, 0 = no ceiling

	// Endpoints. CheckoutBaseURL is only set for redirect variants.
	APIBaseURL      string
	CheckoutBaseURL string

	// Feature flags.
	RequiresCorrelationID bool
	RequiresTransactionID bool
	RequiresFraudToken    bool
	RequiresAmount        bool // a charge amount is mandatory even for subscribe
	WebhookDeferred       bool // completion arrives only via webhook, never by direct exchange
	SupportsMessaging     bool
	DeleteUnsupported     bool
	AltSuccessVocabulary  bool // reports "SUCCESS" where the canonical term is "CHARGED"
}

// SupportsCodeFlow reports whether the operator can run the one-time-code protocol.
func (c OperatorCapability) SupportsCodeFlow() bool {
	switch c.Variant {
	case VariantCodeVerify, VariantCodeWithFraudCheck, VariantRedirectOrCode:
		return true
	}
	return false
}

// SupportsCheckoutFlow reports whether the operator can run the redirect protocol.
func (c OperatorCapability) SupportsCheckoutFlow() bool {
	switch c.Variant {
	case VariantRedirectCheckout, VariantRedirectAnonymous, VariantRedirectOrCode, VariantRedirectAsync:
		return true
	}
	return false
}
