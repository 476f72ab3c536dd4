package flowmanager

import (
	"github.com/go-carrier-billing/internal/domain"
	"github.com/go-carrier-billing/internal/pkg/clock"
	"github.com/go-carrier-billing/internal/pkg/ttlstore"
)

// RefStore is the correlation table mapping an in-flight flow token to
// its pending outcome. Entries live 30 minutes; resolution removes the
// entry so a stale or duplicate webhook cannot double-apply.
type RefStore struct {
	store *ttlstore.Store[*domain.FlowReference]
	clk   clock.Clock
}

func NewRefStore(clk clock.Clock) *RefStore {
	return &RefStore{
		store: ttlstore.New[*domain.FlowReference](domain.FlowReferenceTTL, clk),
		clk:   clk,
	}
}

func refKey(operator, correlationKey string) string { return operator + "|" + correlationKey }

// Register creates a pending reference under (operator, correlationKey).
func (r *RefStore) Register(operator, correlationKey string, kind domain.FlowKind) *domain.FlowReference {
	now := r.clk.Now()
	ref := &domain.FlowReference{
		Operator:       operator,
		CorrelationKey: correlationKey,
		Kind:           kind,
		CreatedAt:      now,
		ExpiresAt:      now.Add(domain.FlowReferenceTTL),
	}
	r.store.Put(refKey(operator, correlationKey), ref)
	return ref
}

// Get returns the live reference, if any.
func (r *RefStore) Get(operator, correlationKey string) (*domain.FlowReference, bool) {
	return r.store.Get(refKey(operator, correlationKey))
}

// Resolve attaches the result and removes the reference. The second
// return is false when no live reference exists: a duplicate or expired
// notification resolves nothing. Lookup and removal happen in a single
// critical section, so concurrent deliveries of the same notification
// resolve at most once.
func (r *RefStore) Resolve(operator, correlationKey string, result *domain.NormalizedResult) (*domain.FlowReference, bool) {
	ref, ok := r.store.GetAndDelete(refKey(operator, correlationKey))
	if !ok {
		return nil, false
	}
	ref.Resolved = true
	ref.Result = result
	return ref, true
}

// Clear removes the reference without resolving it.
func (r *RefStore) Clear(operator, correlationKey string) {
	r.store.Delete(refKey(operator, correlationKey))
}

// Store exposes the underlying TTL store for sweeper wiring.
func (r *RefStore) Store() *ttlstore.Store[*domain.FlowReference] { return r.store }
