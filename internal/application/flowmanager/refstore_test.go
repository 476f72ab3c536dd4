package flowmanager

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-carrier-billing/internal/domain"
	"github.com/go-carrier-billing/internal/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRefFixture() (*RefStore, *clock.Fixed) {
	clk := &clock.Fixed{T: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	return NewRefStore(clk), clk
}

func TestRegisterAndGet(t *testing.T) {
	rs, clk := newRefFixture()

	ref := rs.Register("telenor-no", "corr-1", domain.FlowAsyncWebhook)
	assert.Equal(t, clk.T.Add(domain.FlowReferenceTTL), ref.ExpiresAt)

	got, ok := rs.Get("telenor-no", "corr-1")
	require.True(t, ok)
	assert.Equal(t, domain.FlowAsyncWebhook, got.Kind)
	assert.False(t, got.Resolved)
}

func TestGet_ScopedByOperator(t *testing.T) {
	rs, _ := newRefFixture()
	rs.Register("telenor-no", "corr-1", domain.FlowAsyncWebhook)

	_, ok := rs.Get("orange-pl", "corr-1")
	assert.False(t, ok)
}

func TestResolve_RemovesReference(t *testing.T) {
	rs, _ := newRefFixture()
	rs.Register("telenor-no", "corr-1", domain.FlowAsyncWebhook)

	res := &domain.NormalizedResult{Outcome: domain.OutcomeSuccess, Status: domain.StatusActive}
	ref, ok := rs.Resolve("telenor-no", "corr-1", res)
	require.True(t, ok)
	assert.True(t, ref.Resolved)
	assert.Same(t, res, ref.Result)

	// A second resolution finds nothing.
	_, ok = rs.Resolve("telenor-no", "corr-1", res)
	assert.False(t, ok)
	_, ok = rs.Get("telenor-no", "corr-1")
	assert.False(t, ok)
}

func TestResolve_ConcurrentDeliveriesResolveOnce(t *testing.T) {
	rs, _ := newRefFixture()
	rs.Register("telenor-no", "corr-1", domain.FlowAsyncWebhook)

	const deliveries = 32
	var wg sync.WaitGroup
	var resolved atomic.Int32
	start := make(chan struct{})
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, ok := rs.Resolve("telenor-no", "corr-1", &domain.NormalizedResult{}); ok {
				resolved.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), resolved.Load())
}

func TestResolve_ExpiredReference(t *testing.T) {
	rs, clk := newRefFixture()
	rs.Register("telenor-no", "corr-1", domain.FlowAsyncWebhook)

	clk.Advance(domain.FlowReferenceTTL)
	_, ok := rs.Resolve("telenor-no", "corr-1", &domain.NormalizedResult{})
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	rs, _ := newRefFixture()
	rs.Register("telia-se", "sess-1", domain.FlowAnonymousReference)
	rs.Clear("telia-se", "sess-1")

	_, ok := rs.Get("telia-se", "sess-1")
	assert.False(t, ok)
}
