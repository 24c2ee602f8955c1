package matching

import (
	"testing"

	"github.com/harborpaws/resolve/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestRejectOrganizationalName(t *testing.T) {
	t.Run("ShelterName", func(t *testing.T) {
		exit := rejectOrganizationalName(&models.SignalSet{
			FullName: strPtr("Willamette Humane Society"),
			Phone:    strPtr("5035551234"),
		})
		require.NotNil(t, exit)
		assert.Equal(t, "organizational_name", exit.Rule)
		assert.Equal(t, models.OutcomeRejected, exit.Outcome)
	})

	t.Run("CorporateSuffix", func(t *testing.T) {
		exit := rejectOrganizationalName(&models.SignalSet{
			FullName: strPtr("Acme Pet Supply Inc."),
		})
		require.NotNil(t, exit)
	})

	t.Run("LincolnIsAPerson", func(t *testing.T) {
		exit := rejectOrganizationalName(&models.SignalSet{
			FullName: strPtr("Abe Lincoln"),
		})
		assert.Nil(t, exit)
	})

	t.Run("NoName", func(t *testing.T) {
		assert.Nil(t, rejectOrganizationalName(&models.SignalSet{}))
	})
}

func TestRejectInternalAccount(t *testing.T) {
	exit := rejectInternalAccount(&models.SignalSet{FullName: strPtr("DO NOT USE - duplicate")})
	require.NotNil(t, exit)
	assert.Equal(t, "internal_account", exit.Rule)

	assert.Nil(t, rejectInternalAccount(&models.SignalSet{FullName: strPtr("Pat Lee")}))
}

func TestRejectUnusableSignals(t *testing.T) {
	t.Run("NameOnlyIsNotEnough", func(t *testing.T) {
		exit := rejectUnusableSignals(&models.SignalSet{FullName: strPtr("Pat Lee")})
		require.NotNil(t, exit)
		assert.Equal(t, "no_usable_identifier", exit.Rule)
	})

	t.Run("PhoneAnchors", func(t *testing.T) {
		assert.Nil(t, rejectUnusableSignals(&models.SignalSet{Phone: strPtr("5035551234")}))
	})

	t.Run("NamePlusAddressAnchors", func(t *testing.T) {
		assert.Nil(t, rejectUnusableSignals(&models.SignalSet{
			FullName: strPtr("Pat Lee"),
			Address:  strPtr("123 Main St"),
		}))
	})
}

func TestDefaultPredicatesOrder(t *testing.T) {
	preds := DefaultPredicates()
	require.Len(t, preds, 3)
	assert.Equal(t, "organizational_name", preds[0].Name)
	assert.Equal(t, "internal_account", preds[1].Name)
	assert.Equal(t, "no_usable_identifier", preds[2].Name)
}
