// Package matching implements blocking, probabilistic scoring, and the
// classification of incoming signal sets against canonical persons.
package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/harborpaws/resolve/internal/repositories/blacklist"
	"github.com/harborpaws/resolve/internal/repositories/identifier"
	"github.com/harborpaws/resolve/internal/repositories/matchconfig"
	"github.com/harborpaws/resolve/internal/repositories/matchdecision"
	"github.com/harborpaws/resolve/internal/repositories/matchindex"
	"github.com/harborpaws/resolve/internal/repositories/person"
	"github.com/harborpaws/resolve/internal/tracing"
	"github.com/harborpaws/resolve/pkg/household"
	"github.com/harborpaws/resolve/pkg/locks"
	"github.com/harborpaws/resolve/pkg/models"
	"github.com/harborpaws/resolve/pkg/normalizers"
)

// Exact-identifier fast-path probabilities
const (
	confidenceExternalID = 1.0
	confidencePhone      = 1.0
	confidenceEmail      = 0.98
)

// EventSink receives resolution lifecycle notifications
type EventSink interface {
	EmitDecisionRecorded(ctx context.Context, decision *models.MatchDecision) error
	EmitPersonCreated(ctx context.Context, p *models.Person, sourceSystem string) error
}

// Engine resolves one signal set at a time. Every invocation records exactly
// one MatchDecision, including rejections and failures to find candidates.
type Engine struct {
	logger         ectologger.Logger
	guard          locks.Guard
	scorer         *Scorer
	generator      *Generator
	predicates     []Predicate
	personRepo     *person.Repository
	identifierRepo *identifier.Repository
	decisionRepo   *matchdecision.Repository
	configRepo     *matchconfig.Repository
	blacklistRepo  *blacklist.Repository
	matchIndexRepo *matchindex.Repository
	householdSvc   *household.Service
	events         EventSink
	autoMatch      bool
}

// NewEngine creates a new matching engine
func NewEngine(
	logger ectologger.Logger,
	guard locks.Guard,
	generator *Generator,
	personRepo *person.Repository,
	identifierRepo *identifier.Repository,
	decisionRepo *matchdecision.Repository,
	configRepo *matchconfig.Repository,
	blacklistRepo *blacklist.Repository,
	matchIndexRepo *matchindex.Repository,
	householdSvc *household.Service,
	events EventSink,
	autoMatch bool,
) *Engine {
	return &Engine{
		logger:         logger,
		guard:          guard,
		scorer:         NewScorer(),
		generator:      generator,
		predicates:     DefaultPredicates(),
		personRepo:     personRepo,
		identifierRepo: identifierRepo,
		decisionRepo:   decisionRepo,
		configRepo:     configRepo,
		blacklistRepo:  blacklistRepo,
		matchIndexRepo: matchIndexRepo,
		householdSvc:   householdSvc,
		events:         events,
		autoMatch:      autoMatch,
	}
}

// ResolveIdentity classifies one signal set against the canonical universe.
// The active configuration snapshot is loaded once per call and its version
// is stamped on the decision.
func (e *Engine) ResolveIdentity(ctx context.Context, signals *models.SignalSet, src models.SourceContext) (*models.MatchDecision, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.ResolveIdentity")
	defer span.End()

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"source_system": src.SourceSystem,
		"source_table":  src.SourceTable,
	})

	cfg, err := e.configRepo.GetActive(ctx)
	if err != nil {
		return nil, &models.TransientFailure{Op: "matchconfig.GetActive", Err: err}
	}

	for _, predicate := range e.predicates {
		if exit := predicate.Check(signals); exit != nil {
			log.WithFields(map[string]any{"rule": exit.Rule}).Info("Early exit predicate fired")
			return e.recordDecision(ctx, signals, src, cfg, &evaluation{
				outcome:   exit.Outcome,
				earlyExit: exit.Rule,
			})
		}
	}

	fast, err := e.exactFastPath(ctx, signals, cfg)
	if err != nil {
		return nil, err
	}
	if fast != nil {
		return e.recordDecision(ctx, signals, src, cfg, fast)
	}

	candidateIDs, err := e.generator.CandidatesFor(ctx, signals)
	if err != nil {
		return nil, &models.TransientFailure{Op: "blocking.CandidatesFor", Err: err}
	}

	weights, err := cfg.ParseWeights()
	if err != nil {
		return nil, &models.InvariantViolation{Detail: "active match config has unparseable weights"}
	}

	var top *candidateScore
	for _, candidateID := range candidateIDs {
		score, serr := e.scoreCandidate(ctx, signals, candidateID, weights, cfg)
		if serr != nil {
			return nil, serr
		}
		if top == nil || score.adjusted > top.adjusted {
			top = score
		}
	}

	eval := e.classify(ctx, signals, src, cfg, top, len(candidateIDs))
	return e.recordDecision(ctx, signals, src, cfg, eval)
}

// evaluation is the engine's internal verdict before it is persisted
type evaluation struct {
	outcome        models.DecisionOutcome
	earlyExit      string
	score          float64
	probability    float64
	candidates     int
	topCandidateID *string
	personID       *string
	breakdown      models.ScoreBreakdown
	createPerson   bool
	householdWith  *candidateScore
}

// exactFastPath short-circuits when exactly one canonical person owns an
// exact identifier from the signals and no other exact identifier points
// elsewhere. Blacklisted identifiers never drive the fast path without the
// corroboration their entry demands.
func (e *Engine) exactFastPath(ctx context.Context, signals *models.SignalSet, cfg *models.MatchConfig) (*evaluation, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.exactFastPath")
	defer span.End()

	type hit struct {
		kind       models.IdentifierKind
		owner      *models.Person
		confidence float64
	}

	var hits []hit
	conflict := false
	for _, key := range e.generator.exactKeys(signals) {
		owners, err := e.identifierRepo.FindOwners(ctx, key.kind, key.value)
		if err != nil {
			return nil, &models.TransientFailure{Op: "identifier.FindOwners", Err: err}
		}
		if len(owners) == 0 {
			continue
		}
		if len(owners) > 1 {
			// Shared identifier; the scoring and household paths sort it out.
			conflict = true
			continue
		}

		entry, err := e.blacklistRepo.Get(ctx, key.kind, key.value)
		if err != nil {
			return nil, &models.TransientFailure{Op: "blacklist.Get", Err: err}
		}
		if entry != nil && !e.corroborated(signals, &owners[0], entry, cfg) {
			conflict = true
			continue
		}

		confidence := confidenceExternalID
		switch key.kind {
		case models.IdentifierKindPhone:
			confidence = confidencePhone
		case models.IdentifierKindEmail:
			confidence = confidenceEmail
		}
		hits = append(hits, hit{kind: key.kind, owner: &owners[0], confidence: confidence})
	}

	if len(hits) == 0 {
		return nil, nil
	}
	for _, h := range hits[1:] {
		if h.owner.ID != hits[0].owner.ID {
			// Two source-of-truth identifiers disagree; never fast-path that.
			return nil, nil
		}
	}
	if conflict {
		return nil, nil
	}
	if !e.autoMatch {
		return nil, nil
	}

	best := hits[0]
	personID := best.owner.ID
	// Invert p = 1/(1+2^-score) for the audit row, capped so a probability of
	// exactly 1 keeps the column finite.
	score := 64.0
	if best.confidence < 1.0 {
		score = -math.Log2(1/best.confidence - 1)
	}

	if err := e.enrichPerson(ctx, best.owner, signals, ""); err != nil {
		return nil, err
	}

	return &evaluation{
		outcome:        models.OutcomeAutoMatch,
		earlyExit:      "exact_identifier",
		score:          score,
		probability:    best.confidence,
		topCandidateID: &personID,
		personID:       &personID,
		breakdown: models.ScoreBreakdown{
			MatchedOn:  []string{string(best.kind)},
			Tier:       "exact_identifier",
			PhoneMatch: best.kind == models.IdentifierKindPhone,
			EmailMatch: best.kind == models.IdentifierKindEmail,
			EarlyExit:  "exact_identifier",
		},
	}, nil
}

// candidateScore is one candidate's evaluated evidence. adjusted excludes
// contributions from blacklisted identifiers lacking corroboration; raw keeps
// them for the audit trail.
type candidateScore struct {
	person       *models.Person
	raw          float64
	adjusted     float64
	fields       []models.FieldScore
	matchedOn    []string
	blacklisted  []string
	nameSim      float64
	hasName      bool
	phoneMatch   bool
	emailMatch   bool
	addressMatch bool
	sharedKind   models.IdentifierKind
	sharedValue  string
}

func (e *Engine) scoreCandidate(ctx context.Context, signals *models.SignalSet, candidateID string, weights []models.FieldWeight, cfg *models.MatchConfig) (*candidateScore, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.scoreCandidate")
	defer span.End()

	p, err := e.personRepo.Get(ctx, candidateID)
	if err != nil {
		return nil, &models.TransientFailure{Op: "person.Get", Err: err}
	}
	identifiers, err := e.identifierRepo.ListByPerson(ctx, candidateID)
	if err != nil {
		return nil, &models.TransientFailure{Op: "identifier.ListByPerson", Err: err}
	}
	indexEntries, err := e.matchIndexRepo.ListForPerson(ctx, candidateID)
	if err != nil {
		return nil, &models.TransientFailure{Op: "matchindex.ListForPerson", Err: err}
	}

	cand := newCandidateView(p, identifiers, indexEntries)
	cs := &candidateScore{person: p}

	cs.nameSim, cs.hasName = e.nameSimilarity(signals, cand, cfg)

	for _, w := range weights {
		sim, present, kind, value := e.fieldSimilarity(w.Field, signals, cand, cfg, cs)
		if !present {
			cs.fields = append(cs.fields, models.FieldScore{Field: w.Field, Missing: true})
			continue
		}

		contribution := weightContribution(w, sim)
		agreed := sim >= w.AgreeThreshold

		excluded := false
		if agreed && kind != "" {
			entry, berr := e.blacklistRepo.Get(ctx, kind, value)
			if berr != nil {
				return nil, &models.TransientFailure{Op: "blacklist.Get", Err: berr}
			}
			if entry != nil && !e.corroborated(signals, p, entry, cfg) {
				// Shared identifier without corroboration is not evidence.
				excluded = true
				cs.blacklisted = append(cs.blacklisted, string(kind))
				cs.sharedKind = kind
				cs.sharedValue = value
			}
		}

		cs.raw += contribution
		if !excluded {
			cs.adjusted += contribution
		}
		if agreed && !excluded {
			cs.matchedOn = append(cs.matchedOn, w.Field)
		}
		cs.fields = append(cs.fields, models.FieldScore{
			Field:      w.Field,
			Weight:     contribution,
			Similarity: sim,
			Matched:    agreed,
		})
	}

	return cs, nil
}

// classify applies the threshold ladder, then household rules, then decides
// whether a new person is warranted
func (e *Engine) classify(ctx context.Context, signals *models.SignalSet, src models.SourceContext, cfg *models.MatchConfig, top *candidateScore, candidateCount int) *evaluation {
	eval := &evaluation{candidates: candidateCount}

	if top != nil {
		eval.score = top.adjusted
		eval.probability = logistic(top.adjusted)
		id := top.person.ID
		eval.topCandidateID = &id
		eval.breakdown = models.ScoreBreakdown{
			MatchedOn:      top.matchedOn,
			Fields:         top.fields,
			Tier:           "scored",
			PhoneMatch:     top.phoneMatch,
			EmailMatch:     top.emailMatch,
			AddressMatch:   top.addressMatch,
			Blacklisted:    top.blacklisted,
			NameSimilarity: nameSimPtr(top),
		}
	}

	switch {
	case top != nil && e.autoMatch && top.adjusted >= cfg.UpperThreshold:
		eval.outcome = models.OutcomeAutoMatch
		id := top.person.ID
		eval.personID = &id
	case top != nil && top.adjusted >= cfg.LowerThreshold:
		eval.outcome = models.OutcomeReviewPending
	case top != nil && e.isHouseholdPattern(signals, top, cfg):
		eval.outcome = models.OutcomeHouseholdMember
		eval.createPerson = true
		eval.householdWith = top
	default:
		eval.outcome = models.OutcomeNewEntity
		eval.createPerson = true
	}
	return eval
}

// isHouseholdPattern detects "same phone or address, clearly different name":
// distinct people sharing a contact point belong in a household, not a merge
func (e *Engine) isHouseholdPattern(signals *models.SignalSet, top *candidateScore, cfg *models.MatchConfig) bool {
	if top.sharedKind == "" && !top.addressMatch {
		return false
	}
	if !top.hasName {
		return false
	}
	return top.nameSim < cfg.HouseholdMinNameSimilarity
}

// recordDecision persists the audit row, performing any entity creation the
// verdict requires first so the decision can reference the resulting person
func (e *Engine) recordDecision(ctx context.Context, signals *models.SignalSet, src models.SourceContext, cfg *models.MatchConfig, eval *evaluation) (*models.MatchDecision, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.recordDecision")
	defer span.End()

	if eval.createPerson {
		created, err := e.findOrCreatePerson(ctx, signals, src, eval)
		if err != nil {
			return nil, err
		}
		eval.personID = &created.ID

		if eval.outcome == models.OutcomeHouseholdMember && eval.householdWith != nil {
			if err := e.fileHousehold(ctx, signals, eval.householdWith, created.ID, src); err != nil {
				return nil, err
			}
		}
	}

	if eval.earlyExit != "" && eval.breakdown.EarlyExit == "" {
		eval.breakdown.EarlyExit = eval.earlyExit
	}

	signalsJSON, err := json.Marshal(signals)
	if err != nil {
		return nil, &models.InvariantViolation{Detail: fmt.Sprintf("encode signals: %v", err)}
	}
	breakdownJSON, err := json.Marshal(eval.breakdown)
	if err != nil {
		return nil, &models.InvariantViolation{Detail: fmt.Sprintf("encode score breakdown: %v", err)}
	}

	reviewStatus := models.ReviewStatusNone
	if eval.outcome == models.OutcomeReviewPending {
		reviewStatus = models.ReviewStatusPending
	}

	decision := &models.MatchDecision{
		ID:                  uuid.New().String(),
		SourceSystem:        src.SourceSystem,
		Signals:             signalsJSON,
		CandidatesEvaluated: eval.candidates,
		TopCandidateID:      eval.topCandidateID,
		Score:               eval.score,
		Probability:         eval.probability,
		ScoreBreakdown:      breakdownJSON,
		Outcome:             eval.outcome,
		ResultingPersonID:   eval.personID,
		ConfigVersion:       cfg.Version,
		ReviewStatus:        reviewStatus,
		ProcessedAt:         time.Now().UTC(),
	}
	if src.RawRecordID != "" {
		id := src.RawRecordID
		decision.RawRecordID = &id
	}

	if err := e.decisionRepo.Create(ctx, decision); err != nil {
		return nil, &models.TransientFailure{Op: "matchdecision.Create", Err: err}
	}

	if e.events != nil {
		if err := e.events.EmitDecisionRecorded(ctx, decision); err != nil {
			e.logger.WithContext(ctx).WithError(err).Warn("Failed to emit decision.recorded event")
		}
	}

	return decision, nil
}

// findOrCreatePerson creates a person under the race guard, re-checking for a
// concurrently created owner of the strongest identifier first. N concurrent
// calls bearing the same unseen identifier produce exactly one person.
func (e *Engine) findOrCreatePerson(ctx context.Context, signals *models.SignalSet, src models.SourceContext, eval *evaluation) (*models.Person, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.findOrCreatePerson")
	defer span.End()

	keys := e.generator.exactKeys(signals)
	lockKey := "create:" + normalizers.NormalizeName(signals.BestName())
	if len(keys) > 0 {
		lockKey = "create:" + string(keys[0].kind) + ":" + keys[0].value
	}

	var result *models.Person
	err := e.guard.WithLock(ctx, lockKey, func(ctx context.Context) error {
		// A concurrent caller may have just created the owner.
		for _, key := range keys {
			owners, err := e.identifierRepo.FindOwners(ctx, key.kind, key.value)
			if err != nil {
				return &models.TransientFailure{Op: "identifier.FindOwners", Err: err}
			}
			if len(owners) == 1 && eval.outcome != models.OutcomeHouseholdMember {
				result = &owners[0]
				eval.outcome = models.OutcomeAutoMatch
				eval.probability = 1.0
				eval.breakdown.EarlyExit = "post_lock_recheck"
				return nil
			}
		}

		var firstName, lastName *string
		if signals.FirstName != nil {
			v := normalizers.Trim(*signals.FirstName)
			firstName = &v
		}
		if signals.LastName != nil {
			v := normalizers.Trim(*signals.LastName)
			lastName = &v
		}

		p, err := e.personRepo.Create(ctx, firstName, lastName, signals.BestName())
		if err != nil {
			return &models.TransientFailure{Op: "person.Create", Err: err}
		}

		if err := e.enrichPerson(ctx, p, signals, src.SourceSystem); err != nil {
			return err
		}
		if err := e.generator.IndexPerson(ctx, p.ID, signals); err != nil {
			return &models.TransientFailure{Op: "matchindex.Upsert", Err: err}
		}

		if e.events != nil {
			if err := e.events.EmitPersonCreated(ctx, p, src.SourceSystem); err != nil {
				e.logger.WithContext(ctx).WithError(err).Warn("Failed to emit person.created event")
			}
		}

		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// enrichPerson attaches the signal identifiers to a person. Upserts keep
// replay idempotent.
func (e *Engine) enrichPerson(ctx context.Context, p *models.Person, signals *models.SignalSet, sourceSystem string) error {
	for _, key := range e.generator.exactKeys(signals) {
		confidence := confidenceExternalID
		switch key.kind {
		case models.IdentifierKindPhone:
			confidence = confidencePhone
		case models.IdentifierKindEmail:
			confidence = confidenceEmail
		}
		if _, err := e.identifierRepo.Attach(ctx, p.ID, key.kind, key.value, confidence, sourceSystem); err != nil {
			return &models.TransientFailure{Op: "identifier.Attach", Err: err}
		}
	}
	return nil
}

func (e *Engine) fileHousehold(ctx context.Context, signals *models.SignalSet, top *candidateScore, newPersonID string, src models.SourceContext) error {
	kind := top.sharedKind
	value := top.sharedValue
	if kind == "" && signals.Phone != nil {
		kind = models.IdentifierKindPhone
		value = normalizers.NormalizePhone(*signals.Phone)
	}
	if kind == "" {
		// Shared address only; key the household on the normalized address.
		if signals.Address == nil {
			return nil
		}
		kind = models.IdentifierKind("address")
		value = normalizers.NormalizeAddress(*signals.Address)
	}

	_, err := e.householdSvc.PlaceSharedIdentifier(ctx, kind, value,
		[]string{top.person.ID, newPersonID}, signals.Address, signals.Zip, src.SourceSystem)
	return err
}

// corroborated checks a blacklist entry's requirements against the evidence
// at hand: enough name similarity, plus an address match when demanded
func (e *Engine) corroborated(signals *models.SignalSet, p *models.Person, entry *models.BlacklistEntry, cfg *models.MatchConfig) bool {
	name := signals.BestName()
	personName := personDisplayName(p)
	if name == "" || personName == "" {
		return false
	}
	if len(normalizers.NormalizeName(name)) < cfg.MinNameLength {
		return false
	}

	minSim := entry.MinNameSimilarity
	if minSim <= 0 {
		minSim = cfg.BlacklistMinNameSimilarity
	}
	if e.scorer.NameSimilarity(name, personName) < minSim {
		return false
	}
	if entry.RequireAddressMatch && signals.Address == nil {
		return false
	}
	return true
}

func (e *Engine) nameSimilarity(signals *models.SignalSet, cand *candidateView, cfg *models.MatchConfig) (float64, bool) {
	a := signals.BestName()
	b := cand.name
	if a == "" || b == "" {
		return 0, false
	}
	if len(normalizers.NormalizeName(a)) < cfg.MinNameLength || len(normalizers.NormalizeName(b)) < cfg.MinNameLength {
		return 0, false
	}
	return e.scorer.NameSimilarity(a, b), true
}

// fieldSimilarity computes one compared field's similarity. kind/value are
// set for exact identifier fields so the caller can consult the blacklist.
func (e *Engine) fieldSimilarity(field string, signals *models.SignalSet, cand *candidateView, cfg *models.MatchConfig, cs *candidateScore) (sim float64, present bool, kind models.IdentifierKind, value string) {
	switch field {
	case "name", "full_name":
		s, ok := e.nameSimilarity(signals, cand, cfg)
		return s, ok, "", ""
	case "first_name":
		if signals.FirstName == nil || cand.firstName == "" {
			return 0, false, "", ""
		}
		return e.scorer.NameSimilarity(*signals.FirstName, cand.firstName), true, "", ""
	case "last_name":
		if signals.LastName == nil || cand.lastName == "" {
			return 0, false, "", ""
		}
		return e.scorer.NameSimilarity(*signals.LastName, cand.lastName), true, "", ""
	case "phone":
		if signals.Phone == nil || cand.phone == "" {
			return 0, false, "", ""
		}
		v := normalizers.NormalizePhone(*signals.Phone)
		if !normalizers.UsablePhone(v) {
			return 0, false, "", ""
		}
		s := e.scorer.ExactMatch(v, cand.phone, false)
		if s >= 1 {
			cs.phoneMatch = true
			cs.sharedKind = models.IdentifierKindPhone
			cs.sharedValue = v
		}
		return s, true, models.IdentifierKindPhone, v
	case "email":
		if signals.Email == nil || cand.email == "" {
			return 0, false, "", ""
		}
		v := normalizers.NormalizeEmail(*signals.Email)
		s := e.scorer.ExactMatch(v, cand.email, false)
		if s >= 1 {
			cs.emailMatch = true
		}
		return s, true, models.IdentifierKindEmail, v
	case "external_id":
		if signals.ExternalID == nil || cand.externalID == "" {
			return 0, false, "", ""
		}
		v := normalizers.Trim(*signals.ExternalID)
		return e.scorer.ExactMatch(v, cand.externalID, true), true, models.IdentifierKindExternalID, v
	case "address":
		if signals.Address == nil || cand.address == "" {
			return 0, false, "", ""
		}
		v := normalizers.NormalizeAddress(*signals.Address)
		if normalizers.MergeSafeAddress(v, cand.address) {
			cs.addressMatch = true
			return 1, true, "", ""
		}
		// Differing house numbers veto the field outright no matter how
		// similar the street text is.
		ha, hb := normalizers.HouseNumber(v), normalizers.HouseNumber(cand.address)
		if ha != "" && hb != "" && ha != hb {
			return 0, true, "", ""
		}
		return e.scorer.JaroWinkler(v, cand.address), true, "", ""
	case "zip":
		if signals.Zip == nil || cand.zip == "" {
			return 0, false, "", ""
		}
		return e.scorer.ExactMatch(normalizers.NormalizeZipCode(*signals.Zip), cand.zip, false), true, "", ""
	default:
		return 0, false, "", ""
	}
}

// candidateView flattens a candidate's person row, identifiers, and blocking
// keys into the fields the scorer compares
type candidateView struct {
	name       string
	firstName  string
	lastName   string
	phone      string
	email      string
	externalID string
	address    string
	zip        string
}

func newCandidateView(p *models.Person, identifiers []models.Identifier, entries []matchindex.Entry) *candidateView {
	v := &candidateView{name: personDisplayName(p)}
	if p.FirstName != nil {
		v.firstName = *p.FirstName
	}
	if p.LastName != nil {
		v.lastName = *p.LastName
	}
	for _, id := range identifiers {
		switch id.Kind {
		case models.IdentifierKindPhone:
			if v.phone == "" {
				v.phone = id.NormalizedValue
			}
		case models.IdentifierKindEmail:
			if v.email == "" {
				v.email = id.NormalizedValue
			}
		case models.IdentifierKindExternalID:
			if v.externalID == "" {
				v.externalID = id.NormalizedValue
			}
		}
	}
	for _, entry := range entries {
		switch entry.Field {
		case matchindex.FieldAddress:
			v.address = entry.Value
		case matchindex.FieldNameZip:
			if parts := strings.SplitN(entry.Value, ":", 2); len(parts) == 2 {
				v.zip = parts[1]
			}
		}
	}
	return v
}

func personDisplayName(p *models.Person) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	name := ""
	if p.FirstName != nil {
		name = *p.FirstName
	}
	if p.LastName != nil {
		if name != "" {
			name += " "
		}
		name += *p.LastName
	}
	return name
}

// logistic converts a log-odds score (base 2) to a probability
func logistic(score float64) float64 {
	return 1 / (1 + math.Exp2(-score))
}

// weightContribution maps a similarity onto the signed weight range: full
// agreement weight at or above the agree cutoff, full disagreement weight at
// or below the disagree cutoff, linear in between
func weightContribution(w models.FieldWeight, sim float64) float64 {
	if sim >= w.AgreeThreshold {
		return w.AgreeWeight
	}
	if sim <= w.DisagreeThreshold {
		return w.DisagreeWeight
	}
	span := w.AgreeThreshold - w.DisagreeThreshold
	if span <= 0 {
		return w.DisagreeWeight
	}
	frac := (sim - w.DisagreeThreshold) / span
	return w.DisagreeWeight + frac*(w.AgreeWeight-w.DisagreeWeight)
}

func nameSimPtr(cs *candidateScore) *float64 {
	if !cs.hasName {
		return nil
	}
	v := cs.nameSim
	return &v
}
