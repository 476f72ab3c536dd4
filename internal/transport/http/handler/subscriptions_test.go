package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-carrier-billing/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockSubReader struct{ mock.Mock }

func (m *mockSubReader) Get(ctx context.Context, operator, subject string) (*domain.Subscription, error) {
	args := m.Called(ctx, operator, subject)
	if s, _ := args.Get(0).(*domain.Subscription); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockRecordLister struct{ mock.Mock }

func (m *mockRecordLister) ListBySubject(ctx context.Context, subject string, limit int32) ([]domain.BillingRecord, error) {
	args := m.Called(ctx, subject, limit)
	if recs, _ := args.Get(0).([]domain.BillingRecord); recs != nil {
		return recs, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

func subGetReq(operator, subject string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/v1/subscriptions/%s/%s", operator, subject), nil)
	return withChiParams(r, map[string]string{"operator": operator, "subject": subject})
}

// --- tests ---

func TestSubscriptionGet_Found(t *testing.T) {
	subs := &mockSubReader{}
	subs.On("Get", mock.Anything, "vodafone-de", "4915123456789").
		Return(&domain.Subscription{
			Operator:  "vodafone-de",
			Subject:   "4915123456789",
			Status:    domain.StatusActive,
			CreatedAt: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
		}, nil).Once()
	h := NewSubscriptionHandler(nil, subs, nil)

	rr := httptest.NewRecorder()
	h.Get(rr, subGetReq("vodafone-de", "4915123456789"))

	require.Equal(t, http.StatusOK, rr.Code)
	var got domain.Subscription
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, domain.StatusActive, got.Status)
	subs.AssertExpectations(t)
}

func TestSubscriptionGet_NotFound(t *testing.T) {
	subs := &mockSubReader{}
	subs.On("Get", mock.Anything, "vodafone-de", "4915000000000").
		Return(nil, fmt.Errorf("subscription vodafone-de/4915000000000: %w", domain.ErrReferenceNotFound)).Once()
	h := NewSubscriptionHandler(nil, subs, nil)

	rr := httptest.NewRecorder()
	h.Get(rr, subGetReq("vodafone-de", "4915000000000"))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSubscriptionRecords_DefaultLimit(t *testing.T) {
	records := &mockRecordLister{}
	records.On("ListBySubject", mock.Anything, "4915123456789", int32(50)).
		Return([]domain.BillingRecord{
			{RecordID: "01ARZ3NDEK", Operator: "vodafone-de", Subject: "4915123456789", Phase: "completion"},
		}, nil).Once()
	h := NewSubscriptionHandler(nil, nil, records)

	r := httptest.NewRequest(http.MethodGet, "/v1/subscriptions/vodafone-de/4915123456789/records", nil)
	r = withChiParams(r, map[string]string{"operator": "vodafone-de", "subject": "4915123456789"})
	rr := httptest.NewRecorder()
	h.Records(rr, r)

	require.Equal(t, http.StatusOK, rr.Code)
	var got []domain.BillingRecord
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "completion", got[0].Phase)
	records.AssertExpectations(t)
}

func TestSubscriptionRecords_LimitBounds(t *testing.T) {
	records := &mockRecordLister{}
	records.On("ListBySubject", mock.Anything, "4915123456789", int32(5)).
		Return([]domain.BillingRecord{}, nil).Once()
	h := NewSubscriptionHandler(nil, nil, records)

	for _, bad := range []string{"0", "201", "abc"} {
		r := httptest.NewRequest(http.MethodGet, "/v1/subscriptions/vodafone-de/4915123456789/records?limit="+bad, nil)
		r = withChiParams(r, map[string]string{"operator": "vodafone-de", "subject": "4915123456789"})
		rr := httptest.NewRecorder()
		h.Records(rr, r)
		assert.Equal(t, http.StatusBadRequest, rr.Code, "limit=%s", bad)
	}

	r := httptest.NewRequest(http.MethodGet, "/v1/subscriptions/vodafone-de/4915123456789/records?limit=5", nil)
	r = withChiParams(r, map[string]string{"operator": "vodafone-de", "subject": "4915123456789"})
	rr := httptest.NewRecorder()
	h.Records(rr, r)
	assert.Equal(t, http.StatusOK, rr.Code)
	records.AssertExpectations(t)
}
