package operators

import (
	"testing"

	"github.com/go-carrier-billing/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapabilitiesOf_UnknownOperator(t *testing.T) {
	table := NewTable()
	_, err := table.CapabilitiesOf("carrier-that-does-not-exist")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownOperator)
}

func TestCapabilitiesOf_KnownOperator(t *testing.T) {
	table := NewTable()
	c, err := table.CapabilitiesOf("telenor-no")
	require.NoError(t, err)
	assert.Equal(t, domain.VariantRedirectCheckout, c.Variant)
	assert.True(t, c.WebhookDeferred)
	assert.True(t, c.RequiresCorrelationID)
	assert.True(t, c.AltSuccessVocabulary)
	assert.Equal(t, "NOK", c.Currency)
}

func TestCapabilitiesOf_EveryVariantCovered(t *testing.T) {
	table := NewTable()
	seen := map[domain.ProtocolVariant]bool{}
	for _, c := range table.List() {
		seen[c.Variant] = true
	}
	for _, v := range []domain.ProtocolVariant{
		domain.VariantCodeVerify,
		domain.VariantCodeWithFraudCheck,
		domain.VariantRedirectCheckout,
		domain.VariantRedirectAnonymous,
		domain.VariantRedirectOrCode,
		domain.VariantRedirectAsync,
	} {
		assert.True(t, seen[v], "no operator registered for variant %s", v)
	}
}

func TestList_SortedByID(t *testing.T) {
	table := NewTable()
	list := table.List()
	require.NotEmpty(t, list)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].ID, list[i].ID)
	}
}

func TestSupportsCodeFlow(t *testing.T) {
	table := NewTable()

	o2, err := table.CapabilitiesOf("o2-de")
	require.NoError(t, err)
	assert.True(t, o2.SupportsCodeFlow())
	assert.True(t, o2.SupportsCheckoutFlow())

	telia, err := table.CapabilitiesOf("telia-se")
	require.NoError(t, err)
	assert.False(t, telia.SupportsCodeFlow())
	assert.True(t, telia.SupportsCheckoutFlow())
}
