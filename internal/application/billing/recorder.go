package billing

import (
	"context"
	"log/slog"

	"github.com/go-carrier-billing/internal/domain"
	"github.com/go-carrier-billing/internal/pkg/clock"
	"github.com/go-carrier-billing/internal/pkg/id"
)

// RecordStore is the persistence sink the recorder writes to.
type RecordStore interface {
	Put(ctx context.Context, rec *domain.BillingRecord) error
}

// Recorder writes flow attempt/completion traces. Writes are
// fire-and-forget: a persistence failure is logged and never propagated
// into the flow's result.
type Recorder struct {
	store RecordStore
	clk   clock.Clock
}

func NewRecorder(store RecordStore, clk clock.Clock) *Recorder {
	return &Recorder{store: store, clk: clk}
}

func (r *Recorder) RecordAttempt(ctx context.Context, operator, subject string, op domain.Operation, amountMinor int64) {
	if r == nil || r.store == nil {
		return
	}
	rec := &domain.BillingRecord{
		RecordID:    id.New(),
		Operator:    operator,
		Subject:     subject,
		Operation:   op,
		Phase:       "attempt",
		AmountMinor: amountMinor,
		CreatedAt:   r.clk.Now(),
	}
	if err := r.store.Put(ctx, rec); err != nil {
		slog.Warn("failed to record attempt", "operator", operator, "subject", subject, "err", err)
	}
}

func (r *Recorder) RecordCompletion(ctx context.Context, operator, subject string, op domain.Operation, res *domain.NormalizedResult) {
	if r == nil || r.store == nil {
		return
	}
	rec := &domain.BillingRecord{
		RecordID:  id.New(),
		Operator:  operator,
		Subject:   subject,
		Operation: op,
		Phase:     "completion",
		CreatedAt: r.clk.Now(),
	}
	if res != nil {
		rec.Outcome = res.Outcome
		rec.Status = res.Status
		rec.TransactionID = res.TransactionID
	}
	if err := r.store.Put(ctx, rec); err != nil {
		slog.Warn("failed to record completion", "operator", operator, "subject", subject, "err", err)
	}
}
