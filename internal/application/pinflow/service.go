package pinflow

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/go-carrier-billing/internal/application/normalize"
	"github.com/go-carrier-billing/internal/domain"
	"github.com/go-carrier-billing/internal/infrastructure/upstream"
	"github.com/go-carrier-billing/internal/pkg/clock"
	"github.com/go-carrier-billing/internal/pkg/keymutex"
	"github.com/go-carrier-billing/internal/pkg/ttlstore"
)

// IssueParams carries the caller-supplied context for code issuance.
type IssueParams struct {
	Operation   domain.Operation
	ServiceID   string
	AmountMinor int64
	FraudToken  string
}

// CapabilitySource resolves an operator id to its capability record.
type CapabilitySource interface {
	CapabilitiesOf(operatorID string) (domain.OperatorCapability, error)
}

// Gateway issues calls against the vendor billing API.
type Gateway interface {
	Call(ctx context.Context, endpoint string, params url.Values, cap domain.OperatorCapability) (*upstream.RawResponse, error)
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

// Service runs the one-time-code protocol: issue, track, verify, finalize.
type Service interface {
	IssueCode(ctx context.Context, operatorID, subject string, p IssueParams) (*domain.FlowResult, error)
	VerifyAndComplete(ctx context.Context, operatorID, subject, code string) (*domain.NormalizedResult, error)
}

type service struct {
	caps       CapabilitySource
	gateway    Gateway
	normalizer *normalize.Normalizer
	codes      *ttlstore.Store[domain.PendingCode]
	locks      *keymutex.KeyMutex
	recorder   Recorder
	sms        SMSSender
	clk        clock.Clock
}

func NewService(
	caps CapabilitySource,
	gateway Gateway,
	normalizer *normalize.Normalizer,
	codes *ttlstore.Store[domain.PendingCode],
	recorder Recorder,
	sms SMSSender,
	clk clock.Clock,
) Service {
	return &service{
		caps:       caps,
		gateway:    gateway,
		normalizer: normalizer,
		codes:      codes,
		locks:      keymutex.New(),
		recorder:   recorder,
		sms:        sms,
		clk:        clk,
	}
}

func codeKey(operator, subject string) string { return operator + "|" + subject }

// NewCodeStore builds the pending-code store. Entries are retained past
// the 120-second verification window so a late verification is reported
// as CodeExpired rather than NoPendingCode; the domain deadline is
// checked at verification time and the store TTL only bounds cleanup.
func NewCodeStore(clk clock.Clock) *ttlstore.Store[domain.PendingCode] {
	return ttlstore.New[domain.PendingCode](domain.PendingCodeTTL+10*time.Minute, clk)
}

func (s *service) IssueCode(ctx context.Context, operatorID, subject string, p IssueParams) (*domain.FlowResult, error) {
	cap, err := s.caps.CapabilitiesOf(operatorID)
	if err != nil {
		return nil, err
	}
	if !cap.SupportsCodeFlow() {
		return nil, fmt.Errorf("operator %s runs %s: %w", cap.ID, cap.Variant, domain.ErrUnsupportedProtocol)
	}
	if cap.RequiresAmount && p.AmountMinor <= 0 {
		return nil, fmt.Errorf("operator %s requires a charge amount: %w", cap.ID, domain.ErrMissingAmount)
	}
	if cap.MaxChargeMinor > 0 && p.AmountMinor > cap.MaxChargeMinor {
		return nil, fmt.Errorf("amount %d exceeds operator ceiling %d: %w", p.AmountMinor, cap.MaxChargeMinor, domain.ErrBadRequest)
	}
	if cap.RequiresFraudToken && p.FraudToken == "" {
		return nil, fmt.Errorf("operator %s requires fraud prevention: %w", cap.ID, domain.ErrMissingFraudToken)
	}

	params := url.Values{}
	params.Set("subscriber", subject)
	params.Set("serviceId", p.ServiceID)
	if p.AmountMinor > 0 {
		params.Set("amount", strconv.FormatInt(p.AmountMinor, 10))
	}
	if p.FraudToken != "" {
		params.Set("fraudToken", p.FraudToken)
	}
	if cap.CodeLength > 0 {
		params.Set("codeLength", strconv.Itoa(cap.CodeLength))
	}

	raw, err := s.gateway.Call(ctx, upstream.EndpointPinSend, params, cap)
	res := s.resolveUpstream(raw, err, cap, normalize.KindCodeIssue)
	if res.Outcome == domain.OutcomeError {
		return &domain.FlowResult{Kind: domain.FlowCompleted, Operator: cap.ID, Result: &res}, nil
	}

	now := s.clk.Now()
	pc := domain.PendingCode{
		Operator:    cap.ID,
		Subject:     subject,
		Operation:   p.Operation,
		AmountMinor: p.AmountMinor,
		ServiceID:   p.ServiceID,
		IssuedAt:    now,
		ExpiresAt:   now.Add(domain.PendingCodeTTL),
	}
	s.codes.Put(codeKey(cap.ID, subject), pc)
	s.recorder.RecordAttempt(ctx, cap.ID, subject, p.Operation, p.AmountMinor)

	return &domain.FlowResult{
		Kind:      domain.FlowAwaitCodeEntry,
		Operator:  cap.ID,
		ExpiresAt: pc.ExpiresAt,
	}, nil
}

func (s *service) VerifyAndComplete(ctx context.Context, operatorID, subject, code string) (*domain.NormalizedResult, error) {
	cap, err := s.caps.CapabilitiesOf(operatorID)
	if err != nil {
		return nil, err
	}

	// Attempt counting for one (operator, subject) is strictly serialized.
	key := codeKey(cap.ID, subject)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	pc, ok := s.codes.Get(key)
	if !ok {
		return nil, fmt.Errorf("no code issued for %s/%s: %w", cap.ID, subject, domain.ErrNoPendingCode)
	}
	if !s.clk.Now().Before(pc.ExpiresAt) {
		s.codes.Delete(key)
		return nil, fmt.Errorf("code issued at %s: %w", pc.IssuedAt.Format("15:04:05"), domain.ErrCodeExpired)
	}
	pc.Attempts++
	if pc.Attempts > domain.MaxCodeAttempts {
		s.codes.Delete(key)
		return nil, fmt.Errorf("%d attempts used: %w", domain.MaxCodeAttempts, domain.ErrAttemptsExhausted)
	}

	endpoint := upstream.EndpointSubscriptionCreate
	if pc.Operation == domain.OperationCharge {
		endpoint = upstream.EndpointCharge
	}
	params := url.Values{}
	params.Set("subscriber", subject)
	params.Set("pincode", code)
	params.Set("serviceId", pc.ServiceID)
	if pc.AmountMinor > 0 {
		params.Set("amount", strconv.FormatInt(pc.AmountMinor, 10))
	}

	raw, gwErr := s.gateway.Call(ctx, endpoint, params, cap)
	res := s.resolveUpstream(raw, gwErr, cap, normalize.KindCompletion)
	if res.Outcome == domain.OutcomeError {
		// The attempt is spent; the caller may retry inside the window.
		s.codes.Put(key, pc)
		return &res, nil
	}

	s.codes.Delete(key)
	if res.Subject == "" {
		res.Subject = subject
	}
	s.recorder.RecordCompletion(ctx, cap.ID, subject, pc.Operation, &res)
	s.notify(ctx, cap, res, pc.Operation)
	return &res, nil
}

// resolveUpstream folds a gateway reply or transport failure into one
// normalized result. Transport errors come back as data, not as Go errors.
func (s *service) resolveUpstream(raw *upstream.RawResponse, err error, cap domain.OperatorCapability, kind normalize.RequestKind) domain.NormalizedResult {
	if err != nil {
		return s.normalizer.Normalize(upstream.AsRawError(err), cap, kind)
	}
	return s.normalizer.Normalize(raw, cap, kind)
}

// notify sends the post-completion text. Failure is logged, never propagated.
func (s *service) notify(ctx context.Context, cap domain.OperatorCapability, res domain.NormalizedResult, op domain.Operation) {
	if !cap.SupportsMessaging || s.sms == nil {
		return
	}
	if res.HasAnonymousReference {
		return
	}
	text := "Your subscription is now active."
	if op == domain.OperationCharge {
		text = "Your payment was completed."
	}
	if err := s.sms.SendSMS(ctx, res.Subject, text); err != nil {
		slog.Warn("post-completion SMS failed", "operator", cap.ID, "err", err)
	}
}
