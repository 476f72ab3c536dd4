package flowmanager

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/go-carrier-billing/internal/application/checkout"
	"github.com/go-carrier-billing/internal/application/normalize"
	"github.com/go-carrier-billing/internal/application/pinflow"
	"github.com/go-carrier-billing/internal/domain"
	"github.com/go-carrier-billing/internal/infrastructure/upstream"
)

// InitiateParams is the caller context for starting a flow.
type InitiateParams struct {
	Operation   domain.Operation
	ServiceID   string
	Merchant    string
	ReturnURL   string
	AmountMinor int64
	Locale      string
	FraudToken  string
	// UseCheckout selects the redirect sub-flow for operators that
	// support both protocols.
	UseCheckout bool
}

// Recommendation describes which flow a caller should run for an operator.
type Recommendation struct {
	Operator           string                 `json:"operator"`
	Flow               string                 `json:"flow"` // "code" | "checkout" | "either"
	Variant            domain.ProtocolVariant `json:"variant"`
	RequiresFraudToken bool                   `json:"requires_fraud_token"`
	RequiresAmount     bool                   `json:"requires_amount"`
	CodeLength         int                    `json:"code_length,omitempty"`
}

// CapabilitySource resolves an operator id to its capability record.
type CapabilitySource interface {
	CapabilitiesOf(operatorID string) (domain.OperatorCapability, error)
}

// Gateway issues calls against the vendor billing API.
type Gateway interface {
	Call(ctx context.Context, endpoint string, params url.Values, cap domain.OperatorCapability) (*upstream.RawResponse, error)
}

// AnonymousRefSource resolves stored subject→reference mappings.
type AnonymousRefSource interface {
	Get(ctx context.Context, operator, anonymousID string) (*domain.AnonymousRefMapping, error)
	Delete(ctx context.Context, operator, anonymousID string) error
}

// SubscriptionStore is the lifecycle record sink.
type SubscriptionStore interface {
	Delete(ctx context.Context, operator, subject string) error
}

// Manager selects the protocol to run for an operator and owns the
// flow-reference correlation table.
type Manager struct {
	caps       CapabilitySource
	pin        pinflow.Service
	checkout   checkout.Service
	refs       *RefStore
	gateway    Gateway
	normalizer *normalize.Normalizer
	anonRefs   AnonymousRefSource
	subs       SubscriptionStore
}

func New(
	caps CapabilitySource,
	pin pinflow.Service,
	co checkout.Service,
	refs *RefStore,
	gateway Gateway,
	normalizer *normalize.Normalizer,
	anonRefs AnonymousRefSource,
	subs SubscriptionStore,
) *Manager {
	return &Manager{
		caps:       caps,
		pin:        pin,
		checkout:   co,
		refs:       refs,
		gateway:    gateway,
		normalizer: normalizer,
		anonRefs:   anonRefs,
		subs:       subs,
	}
}

// Refs exposes the correlation table for the webhook reconciler.
func (m *Manager) Refs() *RefStore { return m.refs }

// Initiate starts the right flow for the operator and operation.
func (m *Manager) Initiate(ctx context.Context, operatorID, subject string, p InitiateParams) (*domain.FlowResult, error) {
	cap, err := m.caps.CapabilitiesOf(operatorID)
	if err != nil {
		return nil, err
	}

	switch cap.Variant {
	case domain.VariantCodeVerify:
		return m.pin.IssueCode(ctx, operatorID, subject, issueParams(p))

	case domain.VariantCodeWithFraudCheck:
		if p.FraudToken == "" {
			// Not an error: the caller obtains a token out-of-band and retries.
			return &domain.FlowResult{Kind: domain.FlowLoadFraudScript, Operator: cap.ID}, nil
		}
		return m.pin.IssueCode(ctx, operatorID, subject, issueParams(p))

	case domain.VariantRedirectOrCode:
		if p.UseCheckout {
			return m.checkout.StartCheckout(ctx, operatorID, checkoutParams(p))
		}
		return m.pin.IssueCode(ctx, operatorID, subject, issueParams(p))

	case domain.VariantRedirectCheckout, domain.VariantRedirectAnonymous, domain.VariantRedirectAsync:
		return m.checkout.StartCheckout(ctx, operatorID, checkoutParams(p))

	default:
		return nil, fmt.Errorf("variant %s has no handler: %w", cap.Variant, domain.ErrUnsupportedProtocol)
	}
}

// GetFlowReference returns the live flow reference under (operator, key).
func (m *Manager) GetFlowReference(operatorID, correlationKey string) (*domain.FlowReference, error) {
	if _, err := m.caps.CapabilitiesOf(operatorID); err != nil {
		return nil, err
	}
	ref, ok := m.refs.Get(operatorID, correlationKey)
	if !ok {
		return nil, fmt.Errorf("flow reference %s/%s: %w", operatorID, correlationKey, domain.ErrReferenceNotFound)
	}
	return ref, nil
}

// RecommendedFlow tells the caller which protocol the operator runs.
func (m *Manager) RecommendedFlow(operatorID string) (*Recommendation, error) {
	cap, err := m.caps.CapabilitiesOf(operatorID)
	if err != nil {
		return nil, err
	}
	rec := &Recommendation{
		Operator:           cap.ID,
		Variant:            cap.Variant,
		RequiresFraudToken: cap.RequiresFraudToken,
		RequiresAmount:     cap.RequiresAmount,
		CodeLength:         cap.CodeLength,
	}
	switch {
	case cap.Variant == domain.VariantRedirectOrCode:
		rec.Flow = "either"
	case cap.SupportsCheckoutFlow():
		rec.Flow = "checkout"
	default:
		rec.Flow = "code"
	}
	return rec, nil
}

// Terminate removes a subscription upstream. For anonymous-reference
// operators the stored mapping is resolved first; a missing mapping
// fails fast rather than guessing an identifier the operator may not
// accept.
func (m *Manager) Terminate(ctx context.Context, operatorID, subject string) (*domain.NormalizedResult, error) {
	cap, err := m.caps.CapabilitiesOf(operatorID)
	if err != nil {
		return nil, err
	}
	if cap.DeleteUnsupported {
		return nil, fmt.Errorf("operator %s: %w", cap.ID, domain.ErrDeleteUnsupported)
	}

	subscriber := subject
	anonymousID := ""
	if cap.IdentifierFormat == domain.FormatAnonymousReference {
		anonymousID = subject
		if domain.IsAnonymousReference(subject) {
			anonymousID = domain.AnonymousRefID(subject)
		}
		mapping, err := m.anonRefs.Get(ctx, cap.ID, anonymousID)
		if err != nil {
			return nil, fmt.Errorf("cannot resolve anonymous reference for deletion: %w", err)
		}
		subscriber = mapping.Reference
	}

	params := url.Values{}
	params.Set("subscriber", subscriber)
	raw, gwErr := m.gateway.Call(ctx, upstream.EndpointSubscriptionDelete, params, cap)
	var res domain.NormalizedResult
	if gwErr != nil {
		res = m.normalizer.Normalize(upstream.AsRawError(gwErr), cap, normalize.KindCompletion)
	} else {
		res = m.normalizer.Normalize(raw, cap, normalize.KindCompletion)
	}
	if res.Outcome == domain.OutcomeError {
		return &res, nil
	}

	if res.Status == "" {
		res.Status = domain.StatusRemoved
	}
	if err := m.subs.Delete(ctx, cap.ID, subject); err != nil {
		slog.Warn("failed to delete subscription record", "operator", cap.ID, "subject", subject, "err", err)
	}
	if anonymousID != "" {
		if err := m.anonRefs.Delete(ctx, cap.ID, anonymousID); err != nil {
			slog.Warn("failed to delete anonymous ref mapping", "operator", cap.ID, "err", err)
		}
	}
	return &res, nil
}

func issueParams(p InitiateParams) pinflow.IssueParams {
	return pinflow.IssueParams{
		Operation:   p.Operation,
		ServiceID:   p.ServiceID,
		AmountMinor: p.AmountMinor,
		FraudToken:  p.FraudToken,
	}
}

func checkoutParams(p InitiateParams) checkout.Params {
	return checkout.Params{
		Operation:   p.Operation,
		Merchant:    p.Merchant,
		ServiceID:   p.ServiceID,
		ReturnURL:   p.ReturnURL,
		AmountMinor: p.AmountMinor,
		Locale:      p.Locale,
	}
}
