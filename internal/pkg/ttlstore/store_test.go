package ttlstore

import (
	"testing"
	"time"

	"github.com/go-carrier-billing/internal/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixed() *clock.Fixed {
	return &clock.Fixed{T: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func TestPutGet(t *testing.T) {
	clk := newFixed()
	s := New[string](2*time.Minute, clk)

	exp := s.Put("k", "v")
	assert.Equal(t, clk.T.Add(2*time.Minute), exp)

	v, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestGet_ExpiredAtLookup(t *testing.T) {
	clk := newFixed()
	s := New[int](2*time.Minute, clk)
	s.Put("k", 7)

	// One nanosecond short of the deadline the entry is still live.
	clk.Advance(2*time.Minute - time.Nanosecond)
	_, ok := s.Get("k")
	assert.True(t, ok)

	// At the deadline it is gone, sweeper or not.
	clk.Advance(time.Nanosecond)
	_, ok = s.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestPut_RestartsTTL(t *testing.T) {
	clk := newFixed()
	s := New[int](time.Minute, clk)
	s.Put("k", 1)

	clk.Advance(50 * time.Second)
	s.Put("k", 2)

	clk.Advance(50 * time.Second)
	v, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestGetAndDelete(t *testing.T) {
	clk := newFixed()
	s := New[int](time.Minute, clk)
	s.Put("k", 7)

	v, ok := s.GetAndDelete("k")
	require.True(t, ok)
	assert.Equal(t, 7, v)

	_, ok = s.GetAndDelete("k")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestGetAndDelete_Expired(t *testing.T) {
	clk := newFixed()
	s := New[int](time.Minute, clk)
	s.Put("k", 7)

	clk.Advance(time.Minute)
	_, ok := s.GetAndDelete("k")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestDelete(t *testing.T) {
	clk := newFixed()
	s := New[int](time.Minute, clk)
	s.Put("k", 1)
	s.Delete("k")

	_, ok := s.Get("k")
	assert.False(t, ok)
}

func TestSweep(t *testing.T) {
	clk := newFixed()
	s := New[int](time.Minute, clk)
	s.Put("a", 1)
	s.Put("b", 2)
	clk.Advance(30 * time.Second)
	s.Put("c", 3)

	clk.Advance(31 * time.Second)
	n := s.Sweep()

	assert.Equal(t, 2, n)
	assert.Equal(t, 1, s.Len())
	_, ok := s.Get("c")
	assert.True(t, ok)
}
