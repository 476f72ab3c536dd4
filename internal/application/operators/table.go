package operators

import (
	"fmt"
	"sort"

	"github.com/go-carrier-billing/internal/domain"
)

// Table is the static operator capability registry. Built once at
// startup, read-only afterwards.
type Table struct {
	byID map[string]domain.OperatorCapability
}

// NewTable builds the registry from the built-in operator set.
func NewTable() *Table {
	t := &Table{byID: make(map[string]domain.OperatorCapability, len(builtin))}
	for _, c := range builtin {
		t.byID[c.ID] = c
	}
	return t
}

// CapabilitiesOf returns the capability record for the operator, or
// ErrUnknownOperator when the id is not registered.
func (t *Table) CapabilitiesOf(operatorID string) (domain.OperatorCapability, error) {
	c, ok := t.byID[operatorID]
	if !ok {
		return domain.OperatorCapability{}, fmt.Errorf("operator %q: %w", operatorID, domain.ErrUnknownOperator)
	}
	return c, nil
}

// List returns all registered capabilities sorted by operator id.
func (t *Table) List() []domain.OperatorCapability {
	out := make([]domain.OperatorCapability, 0, len(t.byID))
	for _, c := range t.byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// builtin is the closed set of supported operators. Each entry encodes
// the quirks of one carrier integration: protocol variant, identifier
// format, limits and feature flags.
var builtin = []domain.OperatorCapability{
	{
		ID:                "vodafone-de",
		Name:              "Vodafone Germany",
		Country:           "DE",
		Currency:          "EUR",
		Variant:           domain.VariantCodeVerify,
		IdentifierFormat:  domain.FormatPhoneNumber,
		CodeLength:        6,
		MaxChargeMinor:    500000,
		APIBaseURL:        "https://dcb.vodafone.de/api",
		SupportsMessaging: true,
	},
	{
		ID:                 "three-uk",
		Name:               "Three UK",
		Country:            "GB",
		Currency:           "GBP",
		Variant:            domain.VariantCodeWithFraudCheck,
		IdentifierFormat:   domain.FormatPhoneNumber,
		CodeLength:         4,
		MaxChargeMinor:     400000,
		APIBaseURL:         "https://payment.three.co.uk/api",
		RequiresFraudToken: true,
		SupportsMessaging:  true,
	},
	{
		ID:                    "telenor-no",
		Name:                  "Telenor Norway",
		Country:               "NO",
		Currency:              "NOK",
		Variant:               domain.VariantRedirectCheckout,
		IdentifierFormat:      domain.FormatAnonymousToken,
		APIBaseURL:            "https://billing.telenor.no/api",
		CheckoutBaseURL:       "https://checkout.telenor.no/authorize",
		RequiresCorrelationID: true,
		WebhookDeferred:       true,
		AltSuccessVocabulary:  true,
	},
	{
		ID:               "telia-se",
		Name:             "Telia Sweden",
		Country:          "SE",
		Currency:         "SEK",
		Variant:          domain.VariantRedirectAnonymous,
		IdentifierFormat: domain.FormatAnonymousReference,
		APIBaseURL:       "https://pay.telia.se/api",
		CheckoutBaseURL:  "https://pay.telia.se/authorize",
	},
	{
		ID:                "o2-de",
		Name:              "O2 Germany",
		Country:           "DE",
		Currency:          "EUR",
		Variant:           domain.VariantRedirectOrCode,
		IdentifierFormat:  domain.FormatPhoneNumber,
		CodeLength:        5,
		MaxChargeMinor:    300000,
		APIBaseURL:        "https://payment.o2online.de/api",
		CheckoutBaseURL:   "https://payment.o2online.de/authorize",
		RequiresAmount:    true,
		SupportsMessaging: true,
	},
	{
		ID:                    "orange-pl",
		Name:                  "Orange Poland",
		Country:               "PL",
		Currency:              "PLN",
		Variant:               domain.VariantRedirectAsync,
		IdentifierFormat:      domain.FormatPhoneNumber,
		APIBaseURL:            "https://dcb.orange.pl/api",
		CheckoutBaseURL:       "https://dcb.orange.pl/authorize",
		RequiresTransactionID: true,
		SupportsMessaging:     true,
	},
	{
		ID:               "tmobile-cz",
		Name:             "T-Mobile Czech Republic",
		Country:          "CZ",
		Currency:         "CZK",
		Variant:          domain.VariantRedirectCheckout,
		IdentifierFormat: domain.FormatPhoneNumber,
		APIBaseURL:       "https://platby.t-mobile.cz/api",
		CheckoutBaseURL:  "https://platby.t-mobile.cz/authorize",
	},
	{
		ID:                   "zain-kw",
		Name:                 "Zain Kuwait",
		Country:              "KW",
		Currency:             "KWD",
		Variant:              domain.VariantCodeVerify,
		IdentifierFormat:     domain.FormatPhoneNumber,
		CodeLength:           6,
		MaxChargeMinor:       150000,
		APIBaseURL:           "https://dsp.kw.zain.com/api",
		RequiresAmount:       true,
		DeleteUnsupported:    true,
		AltSuccessVocabulary: true,
	},
}
