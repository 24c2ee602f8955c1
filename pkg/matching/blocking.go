package matching

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/harborpaws/resolve/internal/repositories/identifier"
	"github.com/harborpaws/resolve/internal/repositories/matchindex"
	"github.com/harborpaws/resolve/internal/tracing"
	"github.com/harborpaws/resolve/pkg/models"
	"github.com/harborpaws/resolve/pkg/normalizers"
)

// Generator produces candidate person ids from cheap blocking keys so the
// scorer never does a full pairwise scan. Each key source is capped
// independently; an empty result is the normal no-match path.
type Generator struct {
	identifierRepo *identifier.Repository
	matchIndexRepo *matchindex.Repository
	scorer         *Scorer
	maxPerSource   int
	logger         ectologger.Logger
}

// NewGenerator creates a new candidate generator
func NewGenerator(
	identifierRepo *identifier.Repository,
	matchIndexRepo *matchindex.Repository,
	scorer *Scorer,
	maxPerSource int,
	logger ectologger.Logger,
) *Generator {
	if maxPerSource <= 0 {
		maxPerSource = 5
	}
	return &Generator{
		identifierRepo: identifierRepo,
		matchIndexRepo: matchIndexRepo,
		scorer:         scorer,
		maxPerSource:   maxPerSource,
		logger:         logger,
	}
}

// CandidatesFor returns canonical person ids sharing at least one blocking
// key with the signals, in discovery order with exact-identifier hits first
func (g *Generator) CandidatesFor(ctx context.Context, signals *models.SignalSet) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Generator.CandidatesFor")
	defer span.End()

	seen := make(map[string]bool)
	var candidates []string
	add := func(ids []string) {
		taken := 0
		for _, id := range ids {
			if taken >= g.maxPerSource {
				return
			}
			if !seen[id] {
				seen[id] = true
				candidates = append(candidates, id)
			}
			taken++
		}
	}

	for _, key := range g.exactKeys(signals) {
		owners, err := g.identifierRepo.FindOwners(ctx, key.kind, key.value)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(owners))
		for _, p := range owners {
			ids = append(ids, p.ID)
		}
		add(ids)
	}

	for _, key := range g.indexKeys(signals) {
		ids, err := g.matchIndexRepo.FindPersonIDs(ctx, key.field, key.value, g.maxPerSource)
		if err != nil {
			return nil, err
		}
		add(ids)
	}

	g.logger.WithContext(ctx).WithFields(map[string]any{
		"candidate_count": len(candidates),
	}).Debug("Generated match candidates")
	return candidates, nil
}

// IndexPerson records a new canonical person's blocking keys so later
// records can find them. Upserts, so replay is harmless.
func (g *Generator) IndexPerson(ctx context.Context, personID string, signals *models.SignalSet) error {
	ctx, span := tracing.StartSpan(ctx, "matching.Generator.IndexPerson")
	defer span.End()

	for _, key := range g.indexKeys(signals) {
		if err := g.matchIndexRepo.Upsert(ctx, personID, key.field, key.value); err != nil {
			return err
		}
	}
	return nil
}

type exactKey struct {
	kind  models.IdentifierKind
	value string
}

func (g *Generator) exactKeys(signals *models.SignalSet) []exactKey {
	var keys []exactKey
	if signals.ExternalID != nil {
		if v := normalizers.Trim(*signals.ExternalID); v != "" {
			keys = append(keys, exactKey{models.IdentifierKindExternalID, v})
		}
	}
	if signals.Phone != nil {
		if v := normalizers.NormalizePhone(*signals.Phone); normalizers.UsablePhone(v) {
			keys = append(keys, exactKey{models.IdentifierKindPhone, v})
		}
	}
	if signals.Email != nil {
		if v := normalizers.NormalizeEmail(*signals.Email); v != "" {
			keys = append(keys, exactKey{models.IdentifierKindEmail, v})
		}
	}
	return keys
}

type indexKey struct {
	field string
	value string
}

func (g *Generator) indexKeys(signals *models.SignalSet) []indexKey {
	var keys []indexKey

	lastName := ""
	if signals.LastName != nil {
		lastName = normalizers.NormalizeName(*signals.LastName)
	}
	if lastName != "" {
		code := g.scorer.Soundex(lastName)
		if code != "" {
			keys = append(keys, indexKey{matchindex.FieldLastNameSoundex, code})
			if signals.Zip != nil {
				if zip := normalizers.NormalizeZipCode(*signals.Zip); zip != "" {
					keys = append(keys, indexKey{matchindex.FieldNameZip, code + ":" + zip})
				}
			}
		}
	}

	if signals.Address != nil {
		if addr := normalizers.NormalizeAddress(*signals.Address); addr != "" {
			keys = append(keys, indexKey{matchindex.FieldAddress, addr})
		}
	}

	return keys
}
