package matching

import (
	"context"
	"testing"

	"github.com/harborpaws/resolve/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestLogistic(t *testing.T) {
	t.Run("ZeroScoreIsEven", func(t *testing.T) {
		assert.InDelta(t, 0.5, logistic(0), 0.0001)
	})

	t.Run("HighScoreNearsOne", func(t *testing.T) {
		assert.Greater(t, logistic(12), 0.999)
	})

	t.Run("NegativeScoreNearsZero", func(t *testing.T) {
		assert.Less(t, logistic(-12), 0.001)
	})

	t.Run("OneBitDoublesOdds", func(t *testing.T) {
		assert.InDelta(t, 2.0/3.0, logistic(1), 0.0001)
	})
}

func TestWeightContribution(t *testing.T) {
	w := models.FieldWeight{
		Field:             "last_name",
		AgreeWeight:       4.0,
		DisagreeWeight:    -3.0,
		AgreeThreshold:    0.9,
		DisagreeThreshold: 0.7,
	}

	t.Run("FullAgreement", func(t *testing.T) {
		assert.Equal(t, 4.0, weightContribution(w, 1.0))
		assert.Equal(t, 4.0, weightContribution(w, 0.9))
	})

	t.Run("FullDisagreement", func(t *testing.T) {
		assert.Equal(t, -3.0, weightContribution(w, 0.7))
		assert.Equal(t, -3.0, weightContribution(w, 0.0))
	})

	t.Run("LinearBetween", func(t *testing.T) {
		assert.InDelta(t, 0.5, weightContribution(w, 0.8), 0.0001)
	})

	t.Run("DegenerateSpan", func(t *testing.T) {
		flat := models.FieldWeight{AgreeWeight: 2, DisagreeWeight: -2, AgreeThreshold: 0.9, DisagreeThreshold: 0.9}
		assert.Equal(t, 2.0, weightContribution(flat, 0.9))
		assert.Equal(t, -2.0, weightContribution(flat, 0.89))
	})
}

func TestFieldSimilarityAddressVeto(t *testing.T) {
	e := &Engine{scorer: NewScorer()}
	cfg := &models.MatchConfig{MinNameLength: 2}

	t.Run("DifferentHouseNumbersScoreZero", func(t *testing.T) {
		signals := &models.SignalSet{Address: strPtr("123 Main St")}
		cand := &candidateView{address: "125 Main St"}
		cs := &candidateScore{}

		sim, present, _, _ := e.fieldSimilarity("address", signals, cand, cfg, cs)
		assert.True(t, present)
		assert.Equal(t, 0.0, sim)
		assert.False(t, cs.addressMatch)
	})

	t.Run("SameAddressScoresOne", func(t *testing.T) {
		signals := &models.SignalSet{Address: strPtr("123 Main Street Apt 2")}
		cand := &candidateView{address: "123 Main St"}
		cs := &candidateScore{}

		sim, present, _, _ := e.fieldSimilarity("address", signals, cand, cfg, cs)
		assert.True(t, present)
		assert.Equal(t, 1.0, sim)
		assert.True(t, cs.addressMatch)
	})

	t.Run("MissingAddressIsAbsent", func(t *testing.T) {
		signals := &models.SignalSet{Address: strPtr("123 Main St")}
		cand := &candidateView{}
		cs := &candidateScore{}

		_, present, _, _ := e.fieldSimilarity("address", signals, cand, cfg, cs)
		assert.False(t, present)
	})
}

func TestFieldSimilarityPhoneGate(t *testing.T) {
	e := &Engine{scorer: NewScorer()}
	cfg := &models.MatchConfig{MinNameLength: 2}

	t.Run("ShortPhoneIsAbsent", func(t *testing.T) {
		signals := &models.SignalSet{Phone: strPtr("555-1234")}
		cand := &candidateView{phone: "5551234"}
		cs := &candidateScore{}

		_, present, _, _ := e.fieldSimilarity("phone", signals, cand, cfg, cs)
		assert.False(t, present)
	})

	t.Run("FullPhoneMatches", func(t *testing.T) {
		signals := &models.SignalSet{Phone: strPtr("(503) 555-1234")}
		cand := &candidateView{phone: "5035551234"}
		cs := &candidateScore{}

		sim, present, kind, value := e.fieldSimilarity("phone", signals, cand, cfg, cs)
		assert.True(t, present)
		assert.Equal(t, 1.0, sim)
		assert.Equal(t, models.IdentifierKindPhone, kind)
		assert.Equal(t, "5035551234", value)
		assert.True(t, cs.phoneMatch)
	})
}

func TestClassify(t *testing.T) {
	cfg := &models.MatchConfig{
		UpperThreshold:             12.0,
		LowerThreshold:             5.0,
		HouseholdMinNameSimilarity: 0.85,
	}
	ctx := context.Background()
	signals := &models.SignalSet{}

	top := func(adjusted float64) *candidateScore {
		return &candidateScore{
			person:   &models.Person{ID: "c1"},
			adjusted: adjusted,
			nameSim:  0.99,
			hasName:  true,
		}
	}

	t.Run("AboveUpperThresholdAutoMatches", func(t *testing.T) {
		e := &Engine{autoMatch: true}
		eval := e.classify(ctx, signals, models.SourceContext{}, cfg, top(14.0), 3)

		assert.Equal(t, models.OutcomeAutoMatch, eval.outcome)
		assert.NotNil(t, eval.personID)
		assert.Equal(t, "c1", *eval.personID)
		assert.False(t, eval.createPerson)
		assert.InDelta(t, logistic(14.0), eval.probability, 0.0001)
	})

	t.Run("AutoMatchDisabledFallsToReview", func(t *testing.T) {
		e := &Engine{autoMatch: false}
		eval := e.classify(ctx, signals, models.SourceContext{}, cfg, top(14.0), 3)

		assert.Equal(t, models.OutcomeReviewPending, eval.outcome)
		assert.Nil(t, eval.personID)
	})

	t.Run("GreyZoneGoesToReview", func(t *testing.T) {
		e := &Engine{autoMatch: true}
		eval := e.classify(ctx, signals, models.SourceContext{}, cfg, top(8.0), 2)

		assert.Equal(t, models.OutcomeReviewPending, eval.outcome)
		assert.False(t, eval.createPerson)
	})

	t.Run("SharedPhoneDifferentNameJoinsHousehold", func(t *testing.T) {
		e := &Engine{autoMatch: true}
		cs := top(2.0)
		cs.sharedKind = models.IdentifierKindPhone
		cs.nameSim = 0.3
		eval := e.classify(ctx, signals, models.SourceContext{}, cfg, cs, 1)

		assert.Equal(t, models.OutcomeHouseholdMember, eval.outcome)
		assert.True(t, eval.createPerson)
		assert.Same(t, cs, eval.householdWith)
	})

	t.Run("LowScoreCreatesNewEntity", func(t *testing.T) {
		e := &Engine{autoMatch: true}
		eval := e.classify(ctx, signals, models.SourceContext{}, cfg, top(1.0), 1)

		assert.Equal(t, models.OutcomeNewEntity, eval.outcome)
		assert.True(t, eval.createPerson)
	})

	t.Run("NoCandidatesCreatesNewEntity", func(t *testing.T) {
		e := &Engine{autoMatch: true}
		eval := e.classify(ctx, signals, models.SourceContext{}, cfg, nil, 0)

		assert.Equal(t, models.OutcomeNewEntity, eval.outcome)
		assert.True(t, eval.createPerson)
		assert.Nil(t, eval.topCandidateID)
	})
}

func TestIsHouseholdPattern(t *testing.T) {
	cfg := &models.MatchConfig{HouseholdMinNameSimilarity: 0.85}
	e := &Engine{}
	signals := &models.SignalSet{}

	t.Run("SharedPhoneLowNameSim", func(t *testing.T) {
		cs := &candidateScore{sharedKind: models.IdentifierKindPhone, hasName: true, nameSim: 0.4}
		assert.True(t, e.isHouseholdPattern(signals, cs, cfg))
	})

	t.Run("SharedAddressLowNameSim", func(t *testing.T) {
		cs := &candidateScore{addressMatch: true, hasName: true, nameSim: 0.4}
		assert.True(t, e.isHouseholdPattern(signals, cs, cfg))
	})

	t.Run("NoSharedContactPoint", func(t *testing.T) {
		cs := &candidateScore{hasName: true, nameSim: 0.4}
		assert.False(t, e.isHouseholdPattern(signals, cs, cfg))
	})

	t.Run("SimilarNamesAreNotHousehold", func(t *testing.T) {
		cs := &candidateScore{sharedKind: models.IdentifierKindPhone, hasName: true, nameSim: 0.95}
		assert.False(t, e.isHouseholdPattern(signals, cs, cfg))
	})

	t.Run("NoNameOnRecord", func(t *testing.T) {
		cs := &candidateScore{sharedKind: models.IdentifierKindPhone, hasName: false}
		assert.False(t, e.isHouseholdPattern(signals, cs, cfg))
	})
}
