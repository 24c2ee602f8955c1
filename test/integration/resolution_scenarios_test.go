package integration

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborpaws/resolve/pkg/ingest"
	"github.com/harborpaws/resolve/pkg/matching"
	"github.com/harborpaws/resolve/pkg/models"
	"github.com/harborpaws/resolve/pkg/normalizers"
)

// These scenarios walk realistic connector payloads through the extraction
// and scoring surfaces the worker pipeline composes, without a database.

func TestScenario_DuplicateDonorWithTypo(t *testing.T) {
	scorer := matching.NewScorer()

	existing := json.RawMessage(`{
		"first_name": "Katherine",
		"last_name": "Alvarez",
		"phone": "(503) 555-0142",
		"email": "kat.alvarez@example.com",
		"address": "1418 SE Morrison Street"
	}`)
	incoming := json.RawMessage(`{
		"first_name": "Katherine",
		"surname": "Alvarz",
		"primary_phone": "1-503-555-0142",
		"address": "1418 SE Morrison St"
	}`)

	a, err := ingest.ExtractSignals(existing)
	require.NoError(t, err)
	b, err := ingest.ExtractSignals(incoming)
	require.NoError(t, err)

	t.Run("PhonesNormalizeToSameValue", func(t *testing.T) {
		pa := normalizers.NormalizePhone(*a.Phone)
		pb := normalizers.NormalizePhone(*b.Phone)
		assert.Equal(t, pa, pb)
		assert.True(t, normalizers.UsablePhone(pb))
	})

	t.Run("TypoedSurnameStillScoresHigh", func(t *testing.T) {
		sim := scorer.NameSimilarity(a.BestName(), b.BestName())
		assert.Greater(t, sim, 0.9)
	})

	t.Run("AddressVariantsAreMergeSafe", func(t *testing.T) {
		assert.True(t, normalizers.MergeSafeAddress(*a.Address, *b.Address))
	})
}

func TestScenario_SpousesSharingAPhone(t *testing.T) {
	scorer := matching.NewScorer()

	husband := json.RawMessage(`{
		"full_name": "Marcus Webb",
		"phone": "5035550198",
		"address": "77 Cedar Loop"
	}`)
	wife := json.RawMessage(`{
		"full_name": "Dana Webb",
		"phone": "5035550198",
		"address": "77 Cedar Loop"
	}`)

	a, err := ingest.ExtractSignals(husband)
	require.NoError(t, err)
	b, err := ingest.ExtractSignals(wife)
	require.NoError(t, err)

	t.Run("SharedContactPoint", func(t *testing.T) {
		assert.Equal(t,
			normalizers.NormalizePhone(*a.Phone),
			normalizers.NormalizePhone(*b.Phone))
		assert.True(t, normalizers.MergeSafeAddress(*a.Address, *b.Address))
	})

	t.Run("NamesStayBelowHouseholdCutoff", func(t *testing.T) {
		cfg := models.MatchConfig{HouseholdMinNameSimilarity: 0.85}
		sim := scorer.NameSimilarity(a.BestName(), b.BestName())
		assert.Less(t, sim, cfg.HouseholdMinNameSimilarity)
	})
}

func TestScenario_NameOnlyRecordCannotAnchor(t *testing.T) {
	payload := json.RawMessage(`{"full_name": "John Smith"}`)

	signals, err := ingest.ExtractSignals(payload)
	require.NoError(t, err)

	assert.False(t, signals.HasUsableIdentifier())
	assert.Equal(t, "John Smith", signals.BestName())
}

func TestScenario_SharedShelterLineIsPoorEvidence(t *testing.T) {
	// A front-desk number listed on dozens of intake rows. The value itself
	// normalizes fine; distinguishing its owners falls to name corroboration.
	scorer := matching.NewScorer()
	front := normalizers.NormalizePhone("(503) 555-0100")

	assert.True(t, normalizers.UsablePhone(front))

	entry := models.BlacklistEntry{
		Kind:              models.IdentifierKindPhone,
		NormalizedValue:   front,
		MinNameSimilarity: 0.9,
	}

	t.Run("DifferentCallersFailCorroboration", func(t *testing.T) {
		sim := scorer.NameSimilarity("Priya Nair", "Tom Okafor")
		assert.Less(t, sim, entry.MinNameSimilarity)
	})

	t.Run("SamePersonPassesCorroboration", func(t *testing.T) {
		sim := scorer.NameSimilarity("Priya Nair", "Nair Priya")
		assert.GreaterOrEqual(t, sim, entry.MinNameSimilarity)
	})
}

func TestScenario_DifferentHouseNumbersNeverMergeSafe(t *testing.T) {
	assert.False(t, normalizers.MergeSafeAddress(
		"120 Oak Street", "122 Oak Street"))
	assert.False(t, normalizers.MergeSafeAddress(
		"120 Oak St Apt 4", "122 Oak Street"))
}
