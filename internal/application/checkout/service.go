package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-carrier-billing/internal/application/normalize"
	"github.com/go-carrier-billing/internal/domain"
	"github.com/go-carrier-billing/internal/infrastructure/upstream"
	"github.com/go-carrier-billing/internal/pkg/clock"
	"github.com/go-carrier-billing/internal/pkg/id"
	"github.com/go-carrier-billing/internal/pkg/keymutex"
	"github.com/go-carrier-billing/internal/pkg/ttlstore"
	"github.com/google/uuid"
)

// Params carries the caller-supplied checkout context.
type Params struct {
	Operation     domain.Operation
	Merchant      string
	ServiceID     string
	ReturnURL     string
	AmountMinor   int64
	Locale        string
	CorrelationID string
	TransactionID string
}

// CapabilitySource resolves an operator id to its capability record.
type CapabilitySource interface {
	CapabilitiesOf(operatorID string) (domain.OperatorCapability, error)
}

// Gateway issues calls against the vendor billing API.
type Gateway interface {
	Call(ctx context.Context, endpoint string, params url.Values, cap domain.OperatorCapability) (*upstream.RawResponse, error)
}

// Registrar records a flow that waits for out-of-band resolution.
// The flow manager's reference store implements it.
type Registrar interface {
	Register(operator, correlationKey string, kind domain.FlowKind) *domain.FlowReference
}

// AnonymousRefSink stores subject→reference mappings discovered at completion.
type AnonymousRefSink interface {
	Put(ctx context.Context, m *domain.AnonymousRefMapping) error
}

// Recorder is the fire-and-forget persistence sink.
type Recorder interface {
	RecordAttempt(ctx context.Context, operator, subject string, op domain.Operation, amountMinor int64)
	RecordCompletion(ctx context.Context, operator, subject string, op domain.Operation, res *domain.NormalizedResult)
}

// SMSSender delivers the best-effort post-completion text.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// Service runs the redirect/token protocol: open a time-boxed session,
// send the subscriber to the operator's page, exchange the returned token.
type Service interface {
	StartCheckout(ctx context.Context, operatorID string, p Params) (*domain.FlowResult, error)
	CompleteWithToken(ctx context.Context, operatorID, token, sessionID string) (*domain.NormalizedResult, error)
}

type service struct {
	caps       CapabilitySource
	gateway    Gateway
	normalizer *normalize.Normalizer
	sessions   *ttlstore.Store[domain.CheckoutSession]
	locks      *keymutex.KeyMutex
	refs       Registrar
	anonRefs   AnonymousRefSink
	recorder   Recorder
	sms        SMSSender
	clk        clock.Clock
}

func NewService(
	caps CapabilitySource,
	gateway Gateway,
	normalizer *normalize.Normalizer,
	sessions *ttlstore.Store[domain.CheckoutSession],
	refs Registrar,
	anonRefs AnonymousRefSink,
	recorder Recorder,
	sms SMSSender,
	clk clock.Clock,
) Service {
	return &service{
		caps:       caps,
		gateway:    gateway,
		normalizer: normalizer,
		sessions:   sessions,
		locks:      keymutex.New(),
		refs:       refs,
		anonRefs:   anonRefs,
		recorder:   recorder,
		sms:        sms,
		clk:        clk,
	}
}

// NewSessionStore builds the checkout-session store with the fixed
// 10-minute window. A lookup past the window reports the session absent.
func NewSessionStore(clk clock.Clock) *ttlstore.Store[domain.CheckoutSession] {
	return ttlstore.New[domain.CheckoutSession](domain.CheckoutSessionTTL, clk)
}

func (s *service) StartCheckout(ctx context.Context, operatorID string, p Params) (*domain.FlowResult, error) {
	cap, err := s.caps.CapabilitiesOf(operatorID)
	if err != nil {
		return nil, err
	}
	if !cap.SupportsCheckoutFlow() {
		return nil, fmt.Errorf("operator %s runs %s: %w", cap.ID, cap.Variant, domain.ErrUnsupportedProtocol)
	}
	if cap.MaxChargeMinor > 0 && p.AmountMinor > cap.MaxChargeMinor {
		return nil, fmt.Errorf("amount %d exceeds operator ceiling %d: %w", p.AmountMinor, cap.MaxChargeMinor, domain.ErrBadRequest)
	}

	now := s.clk.Now()
	sess := domain.CheckoutSession{
		SessionID:   id.New(),
		Operator:    cap.ID,
		Operation:   p.Operation,
		Merchant:    p.Merchant,
		ServiceID:   p.ServiceID,
		ReturnURL:   p.ReturnURL,
		AmountMinor: p.AmountMinor,
		Locale:      p.Locale,
		CreatedAt:   now,
		ExpiresAt:   now.Add(domain.CheckoutSessionTTL),
	}

	q := url.Values{}
	q.Set("merchant", p.Merchant)
	q.Set("service", p.ServiceID)
	q.Set("returnUrl", p.ReturnURL)
	q.Set("sessionId", sess.SessionID)
	if p.Locale != "" {
		q.Set("locale", p.Locale)
	}
	if p.AmountMinor > 0 {
		q.Set("price", strconv.FormatInt(p.AmountMinor, 10))
	}

	correlator := p.CorrelationID
	if cap.RequiresCorrelationID && correlator == "" {
		correlator = uuid.NewString()
	}
	if correlator != "" {
		q.Set("correlator", correlator)
	}
	transactionID := p.TransactionID
	if cap.RequiresTransactionID && transactionID == "" {
		transactionID = uuid.NewString()
	}
	if transactionID != "" {
		q.Set("transactionId", transactionID)
	}

	s.sessions.Put(sess.SessionID, sess)
	s.recorder.RecordAttempt(ctx, cap.ID, "", p.Operation, p.AmountMinor)

	result := &domain.FlowResult{
		Kind:        domain.FlowRedirect,
		Operator:    cap.ID,
		SessionID:   sess.SessionID,
		RedirectURL: cap.CheckoutBaseURL + "?" + q.Encode(),
		ExpiresAt:   sess.ExpiresAt,
	}

	switch {
	case cap.WebhookDeferred:
		// Completion arrives only via webhook; the caller must not call
		// the token exchange.
		ref := s.refs.Register(cap.ID, correlator, domain.FlowAsyncWebhook)
		result.Kind = domain.FlowPendingWebhook
		result.CorrelationKey = ref.CorrelationKey
	case cap.Variant == domain.VariantRedirectAnonymous:
		ref := s.refs.Register(cap.ID, sess.SessionID, domain.FlowAnonymousReference)
		result.CorrelationKey = ref.CorrelationKey
	case cap.Variant == domain.VariantRedirectAsync:
		ref := s.refs.Register(cap.ID, transactionID, domain.FlowAsyncNotification)
		result.CorrelationKey = ref.CorrelationKey
	}
	return result, nil
}

func (s *service) CompleteWithToken(ctx context.Context, operatorID, token, sessionID string) (*domain.NormalizedResult, error) {
	cap, err := s.caps.CapabilitiesOf(operatorID)
	if err != nil {
		return nil, err
	}

	// One exchange per session at a time. The session is consumed only
	// on success, so without serialization two concurrent exchanges of
	// the same session id would both reach the upstream charge.
	s.locks.Lock(sessionID)
	defer s.locks.Unlock(sessionID)

	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("checkout session %s: %w", sessionID, domain.ErrSessionNotFound)
	}

	params := url.Values{}
	params.Set("token", canonicalToken(token))
	params.Set("sessionId", sess.SessionID)
	params.Set("serviceId", sess.ServiceID)
	if sess.AmountMinor > 0 {
		params.Set("amount", strconv.FormatInt(sess.AmountMinor, 10))
	}

	kind := normalize.KindCompletion
	if sess.Operation == domain.OperationCharge {
		kind = normalize.KindCharge
	}
	raw, gwErr := s.gateway.Call(ctx, upstream.EndpointCheckoutConfirm, params, cap)
	var res domain.NormalizedResult
	if gwErr != nil {
		res = s.normalizer.Normalize(upstream.AsRawError(gwErr), cap, kind)
	} else {
		res = s.normalizer.Normalize(raw, cap, kind)
	}
	if res.Outcome == domain.OutcomeError {
		// The session survives a failed exchange; it is consumed on success.
		return &res, nil
	}

	s.sessions.Delete(sess.SessionID)
	if res.HasAnonymousReference {
		s.storeAnonymousRef(ctx, cap, sess, res)
	}
	s.recorder.RecordCompletion(ctx, cap.ID, res.Subject, sess.Operation, &res)
	s.notify(ctx, cap, res)
	return &res, nil
}

// canonicalToken strips the artifacts callers introduce when relaying the
// returned token: surrounding whitespace, quotes, or the whole return-URL
// query pasted verbatim.
func canonicalToken(token string) string {
	t := strings.TrimSpace(token)
	t = strings.Trim(t, `"'`)
	if i := strings.Index(t, "token="); i >= 0 {
		t = t[i+len("token="):]
		if j := strings.IndexAny(t, "&#"); j >= 0 {
			t = t[:j]
		}
		if dec, err := url.QueryUnescape(t); err == nil {
			t = dec
		}
	}
	return t
}

func (s *service) storeAnonymousRef(ctx context.Context, cap domain.OperatorCapability, sess domain.CheckoutSession, res domain.NormalizedResult) {
	m := &domain.AnonymousRefMapping{
		Operator:    cap.ID,
		AnonymousID: res.AnonymousID,
		Reference:   res.Subject,
		ServiceID:   sess.ServiceID,
		CreatedAt:   s.clk.Now(),
	}
	if err := s.anonRefs.Put(ctx, m); err != nil {
		slog.Warn("failed to store anonymous ref mapping", "operator", cap.ID, "err", err)
	}
}

func (s *service) notify(ctx context.Context, cap domain.OperatorCapability, res domain.NormalizedResult) {
	if !cap.SupportsMessaging || s.sms == nil || res.HasAnonymousReference || res.Subject == "" {
		return
	}
	if err := s.sms.SendSMS(ctx, res.Subject, "Your payment was completed."); err != nil {
		slog.Warn("post-completion SMS failed", "operator", cap.ID, "err", err)
	}
}
