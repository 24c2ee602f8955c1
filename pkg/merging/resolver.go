// Package merging implements canonical resolution and the merge lifecycle
package merging

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/harborpaws/resolve/internal/repositories/person"
	"github.com/harborpaws/resolve/internal/tracing"
	"github.com/harborpaws/resolve/pkg/models"
)

// Resolver follows merge pointers to the canonical person
type Resolver struct {
	personRepo *person.Repository
	maxDepth   int
	logger     ectologger.Logger
}

// NewResolver creates a new canonical resolver
func NewResolver(personRepo *person.Repository, maxDepth int, logger ectologger.Logger) *Resolver {
	if maxDepth <= 0 {
		maxDepth = 10
	}
	return &Resolver{
		personRepo: personRepo,
		maxDepth:   maxDepth,
		logger:     logger,
	}
}

// CanonicalOf resolves a person id to its canonical person by following
// merged_into pointers. Resolution is idempotent: a canonical person resolves
// to itself. A pointer cycle or a chain longer than the configured depth
// aborts with an invariant violation rather than guessing.
func (r *Resolver) CanonicalOf(ctx context.Context, personID string) (*models.Person, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Resolver.CanonicalOf")
	defer span.End()

	visited := make(map[string]bool, 4)
	currentID := personID

	for depth := 0; depth <= r.maxDepth; depth++ {
		if visited[currentID] {
			r.logger.WithContext(ctx).WithFields(map[string]any{
				"person_id": personID,
				"cycle_at":  currentID,
			}).Error("Merge pointer cycle detected")
			return nil, &models.InvariantViolation{
				Detail: fmt.Sprintf("merge pointer cycle at person %s", currentID),
			}
		}
		visited[currentID] = true

		p, err := r.personRepo.Get(ctx, currentID)
		if err != nil {
			return nil, err
		}
		if p.IsCanonical() {
			return p, nil
		}
		currentID = *p.MergedIntoPersonID
	}

	return nil, &models.InvariantViolation{
		Detail: fmt.Sprintf("merge chain for person %s exceeds depth %d", personID, r.maxDepth),
	}
}

// CanonicalID is CanonicalOf for callers that only need the id
func (r *Resolver) CanonicalID(ctx context.Context, personID string) (string, error) {
	p, err := r.CanonicalOf(ctx, personID)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}
