package webhook

import (
	"context"
	"log/slog"

	"github.com/go-carrier-billing/internal/application/normalize"
	"github.com/go-carrier-billing/internal/domain"
	"github.com/go-carrier-billing/internal/pkg/clock"
)

// Event is the canonical webhook event vocabulary.
type Event string

const (
	EventSubscriptionCreated Event = "subscription-created"
	EventRenewal             Event = "renewal"
	EventSuspension          Event = "suspension"
	EventPaymentFailure      Event = "payment-failure"
	EventDeletion            Event = "deletion"
	EventUnknown             Event = "unknown"
)

// eventTranslation maps the vendor event names the operators actually
// send to the canonical vocabulary.
var eventTranslation = map[string]Event{
	"SUBSCRIPTION_CREATED": EventSubscriptionCreated,
	"subscription_created": EventSubscriptionCreated,
	"ACTIVATED":            EventSubscriptionCreated,
	"RENEWED":              EventRenewal,
	"renewal":              EventRenewal,
	"SUSPENDED":            EventSuspension,
	"suspended":            EventSuspension,
	"PAYMENT_FAILED":       EventPaymentFailure,
	"payment_failed":       EventPaymentFailure,
	"DELETED":              EventDeletion,
	"deleted":              EventDeletion,
}

// Result reports what a reconciliation did.
type Result struct {
	Event      Event                   `json:"event"`
	Operator   string                  `json:"operator"`
	Applied    bool                    `json:"applied"`
	Duplicate  bool                    `json:"duplicate,omitempty"`
	Status     string                  `json:"status,omitempty"`
	Normalized domain.NormalizedResult `json:"normalized"`
}

// CapabilitySource resolves an operator id to its capability record.
type CapabilitySource interface {
	CapabilitiesOf(operatorID string) (domain.OperatorCapability, error)
}

// RefResolver resolves pending flow references. Resolution removes the
// reference, so resolving the same key twice reports no live reference.
type RefResolver interface {
	Resolve(operator, correlationKey string, result *domain.NormalizedResult) (*domain.FlowReference, bool)
}

// SubscriptionStore is the lifecycle record sink.
type SubscriptionStore interface {
	Put(ctx context.Context, s *domain.Subscription) error
	UpdateFields(ctx context.Context, operator, subject string, updates map[string]interface{}) error
	Delete(ctx context.Context, operator, subject string) error
}

// AnonymousRefSink stores subject→reference mappings discovered in notifications.
type AnonymousRefSink interface {
	Put(ctx context.Context, m *domain.AnonymousRefMapping) error
}

// Recorder is the fire-and-forget persistence sink.
type Recorder interface {
	RecordCompletion(ctx context.Context, operator, subject string, op domain.Operation, res *domain.NormalizedResult)
}

// CompletionCallback fires when a pending flow reference is resolved.
type CompletionCallback func(ref *domain.FlowReference, res domain.NormalizedResult)

// Reconciler matches asynchronous operator notifications against the
// flow manager's correlation table and applies lifecycle events.
type Reconciler struct {
	caps       CapabilitySource
	normalizer *normalize.Normalizer
	refs       RefResolver
	subs       SubscriptionStore
	anonRefs   AnonymousRefSink
	recorder   Recorder
	clk        clock.Clock
	onComplete CompletionCallback
}

func NewReconciler(
	caps CapabilitySource,
	normalizer *normalize.Normalizer,
	refs RefResolver,
	subs SubscriptionStore,
	anonRefs AnonymousRefSink,
	recorder Recorder,
	clk clock.Clock,
) *Reconciler {
	return &Reconciler{
		caps:       caps,
		normalizer: normalizer,
		refs:       refs,
		subs:       subs,
		anonRefs:   anonRefs,
		recorder:   recorder,
		clk:        clk,
	}
}

// OnCompletion registers the callback fired when a pending flow resolves.
func (r *Reconciler) OnCompletion(cb CompletionCallback) { r.onComplete = cb }

// Reconcile processes one notification for the operator.
func (r *Reconciler) Reconcile(ctx context.Context, operatorID string, notification map[string]string) (*Result, error) {
	cap, err := r.caps.CapabilitiesOf(operatorID)
	if err != nil {
		return nil, err
	}

	event := translateEvent(notification["event"])
	normalized := r.normalizer.NormalizeFields(notification, cap, normalize.KindNotification)

	out := &Result{
		Event:      event,
		Operator:   cap.ID,
		Status:     normalized.Status,
		Normalized: normalized,
	}

	switch event {
	case EventSubscriptionCreated:
		r.applyCreation(ctx, cap, notification, normalized, out)
	case EventRenewal:
		r.applyRenewal(ctx, cap, normalized, out)
	case EventSuspension:
		r.applySuspension(ctx, cap, normalized, out)
	case EventPaymentFailure:
		r.recorder.RecordCompletion(ctx, cap.ID, normalized.Subject, domain.OperationCharge, &normalized)
		out.Applied = true
	case EventDeletion:
		r.applyDeletion(ctx, cap, normalized, out)
	default:
		// Unmatched event types fall through to a generic processed outcome.
		slog.Info("unhandled webhook event", "operator", cap.ID, "event", notification["event"])
		out.Applied = true
	}
	return out, nil
}

// applyCreation resolves the pending flow reference, if any, and
// persists the new subscription. Only webhook-deferred and async
// operators register references, so for the rest this records the
// lifecycle state without firing a completion.
func (r *Reconciler) applyCreation(ctx context.Context, cap domain.OperatorCapability, notification map[string]string, normalized domain.NormalizedResult, out *Result) {
	key := correlationKeyOf(notification)
	if key != "" {
		ref, ok := r.refs.Resolve(cap.ID, key, &normalized)
		if !ok {
			// Duplicate or expired: the first resolution removed the
			// reference, so this delivery must not re-apply.
			out.Duplicate = true
			return
		}
		if r.onComplete != nil {
			r.onComplete(ref, normalized)
		}
	}

	sub := &domain.Subscription{
		Operator:  cap.ID,
		Subject:   normalized.Subject,
		ServiceID: notification["serviceId"],
		Status:    domain.StatusActive,
		CreatedAt: r.clk.Now(),
		UpdatedAt: r.clk.Now(),
	}
	if err := r.subs.Put(ctx, sub); err != nil {
		slog.Warn("failed to persist subscription", "operator", cap.ID, "err", err)
	}
	if normalized.HasAnonymousReference {
		m := &domain.AnonymousRefMapping{
			Operator:    cap.ID,
			AnonymousID: normalized.AnonymousID,
			Reference:   normalized.Subject,
			ServiceID:   notification["serviceId"],
			CreatedAt:   r.clk.Now(),
		}
		if err := r.anonRefs.Put(ctx, m); err != nil {
			slog.Warn("failed to store anonymous ref mapping", "operator", cap.ID, "err", err)
		}
	}
	r.recorder.RecordCompletion(ctx, cap.ID, normalized.Subject, domain.OperationSubscribe, &normalized)
	out.Applied = true
}

func (r *Reconciler) applyRenewal(ctx context.Context, cap domain.OperatorCapability, normalized domain.NormalizedResult, out *Result) {
	now := r.clk.Now()
	err := r.subs.UpdateFields(ctx, cap.ID, normalized.Subject, map[string]interface{}{
		"status":     domain.StatusActive,
		"renewed_at": now,
		"updated_at": now,
	})
	if err != nil {
		slog.Warn("failed to apply renewal", "operator", cap.ID, "subject", normalized.Subject, "err", err)
	}
	r.recorder.RecordCompletion(ctx, cap.ID, normalized.Subject, domain.OperationCharge, &normalized)
	out.Applied = true
}

// applySuspension marks the subscription suspended (insufficient funds).
// The operator may reactivate it later with a renewal event.
func (r *Reconciler) applySuspension(ctx context.Context, cap domain.OperatorCapability, normalized domain.NormalizedResult, out *Result) {
	err := r.subs.UpdateFields(ctx, cap.ID, normalized.Subject, map[string]interface{}{
		"status":     domain.StatusSuspended,
		"updated_at": r.clk.Now(),
	})
	if err != nil {
		slog.Warn("failed to apply suspension", "operator", cap.ID, "subject", normalized.Subject, "err", err)
	}
	out.Applied = true
}

func (r *Reconciler) applyDeletion(ctx context.Context, cap domain.OperatorCapability, normalized domain.NormalizedResult, out *Result) {
	if err := r.subs.Delete(ctx, cap.ID, normalized.Subject); err != nil {
		slog.Warn("failed to apply deletion", "operator", cap.ID, "subject", normalized.Subject, "err", err)
	}
	out.Applied = true
}

// correlationKeyOf extracts whichever correlation identifier the
// notification carries: correlator, transaction id or session id.
func correlationKeyOf(notification map[string]string) string {
	for _, field := range []string{"correlator", "transactionId", "sessionId"} {
		if v := notification[field]; v != "" {
			return v
		}
	}
	return ""
}

func translateEvent(vendor string) Event {
	if e, ok := eventTranslation[vendor]; ok {
		return e
	}
	return EventUnknown
}
