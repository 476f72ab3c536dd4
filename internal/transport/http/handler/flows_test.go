package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-carrier-billing/internal/application/checkout"
	"github.com/go-carrier-billing/internal/application/flowmanager"
	"github.com/go-carrier-billing/internal/application/normalize"
	"github.com/go-carrier-billing/internal/application/operators"
	"github.com/go-carrier-billing/internal/application/pinflow"
	"github.com/go-carrier-billing/internal/domain"
	"github.com/go-carrier-billing/internal/pkg/clock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockPinSvc struct{ mock.Mock }

func (m *mockPinSvc) IssueCode(ctx context.Context, operatorID, subject string, p pinflow.IssueParams) (*domain.FlowResult, error) {
	args := m.Called(ctx, operatorID, subject, p)
	if r, _ := args.Get(0).(*domain.FlowResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockPinSvc) VerifyAndComplete(ctx context.Context, operatorID, subject, code string) (*domain.NormalizedResult, error) {
	args := m.Called(ctx, operatorID, subject, code)
	if r, _ := args.Get(0).(*domain.NormalizedResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockCheckoutSvc struct{ mock.Mock }

func (m *mockCheckoutSvc) StartCheckout(ctx context.Context, operatorID string, p checkout.Params) (*domain.FlowResult, error) {
	args := m.Called(ctx, operatorID, p)
	if r, _ := args.Get(0).(*domain.FlowResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockCheckoutSvc) CompleteWithToken(ctx context.Context, operatorID, token, sessionID string) (*domain.NormalizedResult, error) {
	args := m.Called(ctx, operatorID, token, sessionID)
	if r, _ := args.Get(0).(*domain.NormalizedResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

func newFlowHandler(pin *mockPinSvc, co *mockCheckoutSvc) *FlowHandler {
	clk := &clock.Fixed{T: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	mgr := flowmanager.New(
		operators.NewTable(),
		pin,
		co,
		flowmanager.NewRefStore(clk),
		nil,
		normalize.New(clk),
		nil,
		nil,
	)
	return NewFlowHandler(mgr, pin, co)
}

// withChiParams injects chi URL params into the request context.
func withChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func postJSON(t *testing.T, target string, v interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
}

// --- Initiate tests ---

func TestInitiate_InvalidBody(t *testing.T) {
	h := newFlowHandler(&mockPinSvc{}, &mockCheckoutSvc{})
	r := httptest.NewRequest(http.MethodPost, "/v1/flows", bytes.NewBufferString("not-json"))
	rr := httptest.NewRecorder()
	h.Initiate(rr, r)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestInitiate_ValidationFailure(t *testing.T) {
	h := newFlowHandler(&mockPinSvc{}, &mockCheckoutSvc{})
	r := postJSON(t, "/v1/flows", InitiateRequest{Operator: "vodafone-de"}) // missing operation and service id
	rr := httptest.NewRecorder()
	h.Initiate(rr, r)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestInitiate_UnknownOperator(t *testing.T) {
	h := newFlowHandler(&mockPinSvc{}, &mockCheckoutSvc{})
	r := postJSON(t, "/v1/flows", InitiateRequest{
		Operator: "nope", Operation: "subscribe", ServiceID: "svc-1",
	})
	rr := httptest.NewRecorder()
	h.Initiate(rr, r)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestInitiate_CodeFlow(t *testing.T) {
	pin := &mockPinSvc{}
	pin.On("IssueCode", mock.Anything, "vodafone-de", "4915123456789", mock.Anything).
		Return(&domain.FlowResult{Kind: domain.FlowAwaitCodeEntry, Operator: "vodafone-de"}, nil)
	h := newFlowHandler(pin, &mockCheckoutSvc{})

	r := postJSON(t, "/v1/flows", InitiateRequest{
		Operator: "vodafone-de", Subject: "4915123456789",
		Operation: "subscribe", ServiceID: "svc-1",
	})
	rr := httptest.NewRecorder()
	h.Initiate(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	var res domain.FlowResult
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Equal(t, domain.FlowAwaitCodeEntry, res.Kind)
	pin.AssertExpectations(t)
}

func TestInitiate_MissingFraudTokenMapsToBadRequest(t *testing.T) {
	pin := &mockPinSvc{}
	pin.On("IssueCode", mock.Anything, "vodafone-de", mock.Anything, mock.Anything).
		Return(nil, domain.ErrMissingFraudToken)
	h := newFlowHandler(pin, &mockCheckoutSvc{})

	r := postJSON(t, "/v1/flows", InitiateRequest{
		Operator: "vodafone-de", Subject: "4915123456789",
		Operation: "subscribe", ServiceID: "svc-1",
	})
	rr := httptest.NewRecorder()
	h.Initiate(rr, r)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// --- Verify tests ---

func TestVerify_HappyPath(t *testing.T) {
	pin := &mockPinSvc{}
	pin.On("VerifyAndComplete", mock.Anything, "vodafone-de", "4915123456789", "123456").
		Return(&domain.NormalizedResult{Outcome: domain.OutcomeSuccess, Status: domain.StatusActive}, nil)
	h := newFlowHandler(pin, &mockCheckoutSvc{})

	r := postJSON(t, "/v1/flows/verify", VerifyRequest{
		Operator: "vodafone-de", Subject: "4915123456789", Code: "123456",
	})
	rr := httptest.NewRecorder()
	h.Verify(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	pin.AssertExpectations(t)
}

func TestVerify_SentinelMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"no pending code", domain.ErrNoPendingCode, http.StatusNotFound},
		{"code expired", domain.ErrCodeExpired, http.StatusGone},
		{"attempts exhausted", domain.ErrAttemptsExhausted, http.StatusGone},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pin := &mockPinSvc{}
			pin.On("VerifyAndComplete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(nil, tc.err)
			h := newFlowHandler(pin, &mockCheckoutSvc{})

			r := postJSON(t, "/v1/flows/verify", VerifyRequest{
				Operator: "vodafone-de", Subject: "4915123456789", Code: "000000",
			})
			rr := httptest.NewRecorder()
			h.Verify(rr, r)
			assert.Equal(t, tc.code, rr.Code)
		})
	}
}

// --- CompleteCheckout tests ---

func TestCompleteCheckout_SessionNotFound(t *testing.T) {
	co := &mockCheckoutSvc{}
	co.On("CompleteWithToken", mock.Anything, "tmobile-cz", "tok", "s1").
		Return(nil, domain.ErrSessionNotFound)
	h := newFlowHandler(&mockPinSvc{}, co)

	r := postJSON(t, "/v1/flows/checkout/complete", CompleteCheckoutRequest{
		Operator: "tmobile-cz", Token: "tok", SessionID: "s1",
	})
	rr := httptest.NewRecorder()
	h.CompleteCheckout(rr, r)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCompleteCheckout_HappyPath(t *testing.T) {
	co := &mockCheckoutSvc{}
	co.On("CompleteWithToken", mock.Anything, "tmobile-cz", "tok", "s1").
		Return(&domain.NormalizedResult{Outcome: domain.OutcomeSuccess, Status: domain.StatusActive}, nil)
	h := newFlowHandler(&mockPinSvc{}, co)

	r := postJSON(t, "/v1/flows/checkout/complete", CompleteCheckoutRequest{
		Operator: "tmobile-cz", Token: "tok", SessionID: "s1",
	})
	rr := httptest.NewRecorder()
	h.CompleteCheckout(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	var res domain.NormalizedResult
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Equal(t, domain.StatusActive, res.Status)
}

// --- GetReference / Recommended tests ---

func TestGetReference_NotFound(t *testing.T) {
	h := newFlowHandler(&mockPinSvc{}, &mockCheckoutSvc{})
	r := withChiParams(httptest.NewRequest(http.MethodGet, "/v1/flows/references/telenor-no/corr-1", nil),
		map[string]string{"operator": "telenor-no", "key": "corr-1"})
	rr := httptest.NewRecorder()
	h.GetReference(rr, r)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRecommended(t *testing.T) {
	h := newFlowHandler(&mockPinSvc{}, &mockCheckoutSvc{})
	r := withChiParams(httptest.NewRequest(http.MethodGet, "/v1/flows/recommended/o2-de", nil),
		map[string]string{"operator": "o2-de"})
	rr := httptest.NewRecorder()
	h.Recommended(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	var rec flowmanager.Recommendation
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&rec))
	assert.Equal(t, "either", rec.Flow)
}

// --- Operator handler tests ---

func TestOperatorList(t *testing.T) {
	h := NewOperatorHandler(operators.NewTable())
	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/v1/operators", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var list []domain.OperatorCapability
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&list))
	assert.Len(t, list, 8)
}

func TestOperatorGet_Unknown(t *testing.T) {
	h := NewOperatorHandler(operators.NewTable())
	r := withChiParams(httptest.NewRequest(http.MethodGet, "/v1/operators/nope", nil),
		map[string]string{"id": "nope"})
	rr := httptest.NewRecorder()
	h.Get(rr, r)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
