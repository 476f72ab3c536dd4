package upstream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-carrier-billing/internal/config"
	"github.com/go-carrier-billing/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sandboxGateway() *Gateway {
	return NewGateway(&config.Config{
		AppEnv:          "sandbox",
		MerchantID:      "merch-1",
		SandboxCode:     "000000",
		UpstreamTimeout: 5 * time.Second,
	})
}

func capFor(baseURL string) domain.OperatorCapability {
	return domain.OperatorCapability{
		ID:         "vodafone-de",
		Variant:    domain.VariantCodeVerify,
		APIBaseURL: baseURL,
	}
}

func TestCall_Success(t *testing.T) {
	var gotForm url.Values
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		gotPath = r.URL.Path
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":{"status":"PENDING"}}`))
	}))
	defer srv.Close()

	params := url.Values{}
	params.Set("subscriber", "4915123456789")
	raw, err := sandboxGateway().Call(context.Background(), EndpointPinSend, params, capFor(srv.URL))

	require.NoError(t, err)
	require.NotNil(t, raw.Success)
	assert.Equal(t, "PENDING", raw.Success["status"])
	assert.Equal(t, EndpointPinSend, gotPath)
	assert.Equal(t, "merch-1", gotForm.Get("merchantId"))
	assert.Equal(t, "1", gotForm.Get("sandbox"))
	assert.Equal(t, "000000", gotForm.Get("testCode"))
}

func TestCall_SandboxCodeOnlyOnPinSend(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		w.Write([]byte(`{"success":{"status":"ACTIVE"}}`))
	}))
	defer srv.Close()

	_, err := sandboxGateway().Call(context.Background(), EndpointSubscriptionCreate, nil, capFor(srv.URL))

	require.NoError(t, err)
	assert.Empty(t, gotForm.Get("testCode"))
	assert.Equal(t, "1", gotForm.Get("sandbox"))
}

func TestCall_GeneratesCorrelator(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		w.Write([]byte(`{"success":{"status":"PENDING"}}`))
	}))
	defer srv.Close()

	cap := capFor(srv.URL)
	cap.RequiresCorrelationID = true
	_, err := sandboxGateway().Call(context.Background(), EndpointCheckoutConfirm, nil, cap)

	require.NoError(t, err)
	assert.NotEmpty(t, gotForm.Get("correlator"))
}

func TestCall_KeepsCallerCorrelator(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		w.Write([]byte(`{"success":{}}`))
	}))
	defer srv.Close()

	cap := capFor(srv.URL)
	cap.RequiresCorrelationID = true
	params := url.Values{}
	params.Set("correlator", "corr-supplied")
	_, err := sandboxGateway().Call(context.Background(), EndpointCheckoutConfirm, params, cap)

	require.NoError(t, err)
	assert.Equal(t, "corr-supplied", gotForm.Get("correlator"))
}

func TestCall_StructuredErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"category":"PAYMENT","code":"3002","message":"insufficient funds"}}`))
	}))
	defer srv.Close()

	_, err := sandboxGateway().Call(context.Background(), EndpointCharge, nil, capFor(srv.URL))

	require.Error(t, err)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusPaymentRequired, te.HTTPStatus)
	assert.Equal(t, "PAYMENT", te.Category)
	assert.Equal(t, "3002", te.Code)
}

func TestCall_BareNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := sandboxGateway().Call(context.Background(), EndpointCharge, nil, capFor(srv.URL))

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadGateway, te.HTTPStatus)
	assert.Empty(t, te.Code)
}

func TestCall_MalformedBodyOn2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := sandboxGateway().Call(context.Background(), EndpointCharge, nil, capFor(srv.URL))

	var te *TransportError
	require.ErrorAs(t, err, &te)
}

func TestCall_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body first: the server only watches for client
		// disconnect (which cancels r.Context()) once the request body
		// has been consumed.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := sandboxGateway().Call(ctx, EndpointCharge, nil, capFor(srv.URL))

	var te *TransportError
	require.ErrorAs(t, err, &te)
}

func TestAsRawError(t *testing.T) {
	t.Run("structured transport error", func(t *testing.T) {
		raw := AsRawError(&TransportError{HTTPStatus: 402, Category: "PAYMENT", Code: "3002", Message: "insufficient funds"})
		require.NotNil(t, raw.Error)
		assert.Equal(t, "PAYMENT", raw.Error.Category)
		assert.Equal(t, "3002", raw.Error.Code)
	})
	t.Run("bare transport error", func(t *testing.T) {
		raw := AsRawError(&TransportError{HTTPStatus: 502})
		require.NotNil(t, raw.Error)
		assert.Equal(t, "TRANSPORT", raw.Error.Category)
		assert.NotEmpty(t, raw.Error.Message)
	})
	t.Run("plain error", func(t *testing.T) {
		raw := AsRawError(assert.AnError)
		require.NotNil(t, raw.Error)
		assert.Equal(t, "TRANSPORT", raw.Error.Category)
	})
}
