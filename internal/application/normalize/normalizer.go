package normalize

import (
	"github.com/go-carrier-billing/internal/domain"
	"github.com/go-carrier-billing/internal/infrastructure/upstream"
	"github.com/go-carrier-billing/internal/pkg/clock"
)

// RequestKind tells the normalizer which operation produced the payload.
type RequestKind string

const (
	KindCodeIssue    RequestKind = "code-issue"
	KindCompletion   RequestKind = "completion"
	KindCharge       RequestKind = "charge"
	KindMessage      RequestKind = "message"
	KindNotification RequestKind = "notification"
)

// errorInfo is one row of the static upstream error-code table.
type errorInfo struct {
	description string
	retryable   bool
	remediation string
}

// Upstream error codes. The retryable set is fixed: code issuance, code
// expiry, charge issuance and message issuance failures may be retried
// by the caller; the rest are terminal.
var errorTable = map[string]errorInfo{
	"1001": {description: "invalid subscriber identifier", remediation: "verify the phone number format"},
	"1002": {description: "subscriber barred from carrier billing", remediation: "subscriber must contact their operator"},
	"2001": {description: "one-time code could not be issued", retryable: true, remediation: "re-issue the code"},
	"2002": {description: "one-time code expired", retryable: true, remediation: "re-issue the code"},
	"2003": {description: "one-time code did not match"},
	"3001": {description: "charge could not be issued", retryable: true, remediation: "retry the charge"},
	"3002": {description: "insufficient subscriber funds", remediation: "retry after the subscriber tops up"},
	"4001": {description: "message could not be delivered", retryable: true, remediation: "retry message delivery"},
	"5001": {description: "subscription already exists", remediation: "look up the existing subscription"},
}

// altStatusTranslation rewrites the alternate success vocabulary used by
// some operators into the canonical term.
var altStatusTranslation = map[string]string{
	"SUCCESS": domain.StatusCharged,
}

// Normalizer maps heterogeneous upstream payloads into the one canonical
// result shape. Pure transformation: no retries, no external calls.
type Normalizer struct {
	clk clock.Clock
}

func New(clk clock.Clock) *Normalizer {
	return &Normalizer{clk: clk}
}

// Normalize converts a raw vendor response for the given operator.
func (n *Normalizer) Normalize(raw *upstream.RawResponse, cap domain.OperatorCapability, kind RequestKind) domain.NormalizedResult {
	if raw != nil && raw.Error != nil {
		res := n.base(cap)
		res.Outcome = domain.OutcomeError
		res.Status = domain.StatusFailed
		info := errorTable[raw.Error.Code]
		desc := info.description
		if desc == "" {
			desc = raw.Error.Message
		}
		res.Error = &domain.ErrorDetail{
			Category:    raw.Error.Category,
			Code:        raw.Error.Code,
			Description: desc,
			Retryable:   info.retryable,
			Remediation: info.remediation,
		}
		return res
	}
	var fields map[string]string
	if raw != nil {
		fields = raw.Success
	}
	return n.NormalizeFields(fields, cap, kind)
}

// NormalizeFields converts an already-decoded success or notification
// payload. Webhook notifications take this path directly.
func (n *Normalizer) NormalizeFields(fields map[string]string, cap domain.OperatorCapability, kind RequestKind) domain.NormalizedResult {
	res := n.base(cap)
	res.Outcome = domain.OutcomeSuccess

	if len(fields) > 0 {
		// Copy verbatim; canonical rewrites never lose the original.
		res.Fields = make(map[string]string, len(fields))
		for k, v := range fields {
			res.Fields[k] = v
		}
	}

	res.Status = fields["status"]
	if cap.AltSuccessVocabulary {
		if canonical, ok := altStatusTranslation[res.Status]; ok {
			res.UpstreamStatus = res.Status
			res.Status = canonical
		}
	}

	if s := fields["subscriber"]; s != "" {
		res.Subject = s
	} else if s := fields["msisdn"]; s != "" {
		res.Subject = s
	}
	if domain.IsAnonymousReference(res.Subject) {
		res.HasAnonymousReference = true
		res.AnonymousID = domain.AnonymousRefID(res.Subject)
	}

	res.TransactionID = fields["transactionId"]

	if cap.WebhookDeferred {
		res.IsAsync = true
		res.RequiresWebhook = true
	}
	if cap.Variant == domain.VariantRedirectAsync {
		res.IsAsync = true
	}

	if res.Status == domain.StatusPending || (res.IsAsync && kind != KindNotification) {
		res.Outcome = domain.OutcomePending
	}
	return res
}

func (n *Normalizer) base(cap domain.OperatorCapability) domain.NormalizedResult {
	return domain.NormalizedResult{
		Operator:  cap.ID,
		Timestamp: n.clk.Now(),
		Currency:  cap.Currency,
		Country:   cap.Country,
		Variant:   cap.Variant,
	}
}
