package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-carrier-billing/internal/config"
	"github.com/go-carrier-billing/internal/domain"
	"github.com/google/uuid"
)

// Vendor API endpoints. Every operator exposes the same paths under its
// own base URL; the quirks live in parameters and response vocabulary.
const (
	EndpointPinSend            = "/pincode/send"
	EndpointPinVerify          = "/pincode/verify"
	EndpointSubscriptionCreate = "/subscription/create"
	EndpointSubscriptionDelete = "/subscription/delete"
	EndpointCharge             = "/payment/charge"
	EndpointCheckoutConfirm    = "/checkout/confirm"
	EndpointMessageSend        = "/message/send"
)

// RawResponse is the undecoded vendor reply: exactly one of Success or
// Error is set on a well-formed payload.
type RawResponse struct {
	Success map[string]string `json:"success,omitempty"`
	Error   *UpstreamError    `json:"error,omitempty"`
}

// UpstreamError is the structured error object some vendor responses carry.
type UpstreamError struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Message  string `json:"message,omitempty"`
}

// TransportError reports a transport-level failure: network error,
// timeout or a non-2xx reply. When the upstream supplied a structured
// error it is attached.
type TransportError struct {
	HTTPStatus int
	Category   string
	Code       string
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("upstream error %s/%s (http %d): %s", e.Category, e.Code, e.HTTPStatus, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("upstream transport failure: %v", e.Err)
	}
	return fmt.Sprintf("upstream returned http %d", e.HTTPStatus)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AsRawError folds a gateway failure back into the raw-response shape so
// callers can normalize transport failures the same way as structured
// upstream errors.
func AsRawError(err error) *RawResponse {
	var te *TransportError
	if errors.As(err, &te) {
		ue := &UpstreamError{Category: te.Category, Code: te.Code, Message: te.Message}
		if ue.Category == "" {
			ue.Category = "TRANSPORT"
		}
		if ue.Message == "" {
			ue.Message = te.Error()
		}
		return &RawResponse{Error: ue}
	}
	return &RawResponse{Error: &UpstreamError{Category: "TRANSPORT", Message: err.Error()}}
}

// Gateway issues authenticated calls against the vendor billing API.
// It never retries; retry policy belongs to the caller.
type Gateway struct {
	client      *http.Client
	merchantID  string
	sandboxCode string
	production  bool
}

func NewGateway(cfg *config.Config) *Gateway {
	return &Gateway{
		client:      &http.Client{Timeout: cfg.UpstreamTimeout},
		merchantID:  cfg.MerchantID,
		sandboxCode: cfg.SandboxCode,
		production:  cfg.IsProduction(),
	}
}

// Call POSTs form-encoded parameters to the operator's endpoint and
// decodes the reply. Operator-required enrichment (correlation id,
// sandbox code) is applied before transport.
func (g *Gateway) Call(ctx context.Context, endpoint string, params url.Values, cap domain.OperatorCapability) (*RawResponse, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("merchantId", g.merchantID)
	if cap.RequiresCorrelationID && params.Get("correlator") == "" {
		params.Set("correlator", uuid.NewString())
	}
	if !g.production {
		params.Set("sandbox", "1")
		if endpoint == EndpointPinSend {
			params.Set("testCode", g.sandboxCode)
		}
	}

	target := cap.APIBaseURL + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &TransportError{HTTPStatus: resp.StatusCode, Err: err}
	}

	var raw RawResponse
	if len(body) > 0 {
		// A malformed body on a 2xx is a vendor bug worth surfacing;
		// on a non-2xx the status alone carries the failure.
		if jsonErr := json.Unmarshal(body, &raw); jsonErr != nil && resp.StatusCode < 300 {
			return nil, &TransportError{HTTPStatus: resp.StatusCode, Err: fmt.Errorf("decode response: %w", jsonErr)}
		}
	}

	if resp.StatusCode >= 300 {
		te := &TransportError{HTTPStatus: resp.StatusCode}
		if raw.Error != nil {
			te.Category = raw.Error.Category
			te.Code = raw.Error.Code
			te.Message = raw.Error.Message
		}
		return nil, te
	}
	return &raw, nil
}
