package merging

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/harborpaws/resolve/internal/repositories/identifier"
	"github.com/harborpaws/resolve/internal/repositories/matchindex"
	"github.com/harborpaws/resolve/internal/repositories/mergehistory"
	"github.com/harborpaws/resolve/internal/repositories/person"
	"github.com/harborpaws/resolve/internal/repositories/relationship"
	"github.com/harborpaws/resolve/internal/tracing"
	"github.com/harborpaws/resolve/pkg/locks"
	"github.com/harborpaws/resolve/pkg/models"
)

// EventSink receives merge lifecycle notifications. Emission failures are
// logged, never propagated; the merge is already committed.
type EventSink interface {
	EmitPersonMerged(ctx context.Context, result *models.MergeResult) error
	EmitMergeUndone(ctx context.Context, history *models.MergeHistory) error
}

// Engine performs merges and undos. Merges move identifiers and
// relationships to the target and set a pointer on the source; the source row
// is never deleted, so every merge can be located and reversed later.
type Engine struct {
	logger           ectologger.Logger
	guard            locks.Guard
	personRepo       *person.Repository
	identifierRepo   *identifier.Repository
	relationshipRepo *relationship.Repository
	historyRepo      *mergehistory.Repository
	matchIndexRepo   *matchindex.Repository
	resolver         *Resolver
	events           EventSink
}

// NewEngine creates a new merge engine
func NewEngine(
	logger ectologger.Logger,
	guard locks.Guard,
	personRepo *person.Repository,
	identifierRepo *identifier.Repository,
	relationshipRepo *relationship.Repository,
	historyRepo *mergehistory.Repository,
	matchIndexRepo *matchindex.Repository,
	resolver *Resolver,
	events EventSink,
) *Engine {
	return &Engine{
		logger:           logger,
		guard:            guard,
		personRepo:       personRepo,
		identifierRepo:   identifierRepo,
		relationshipRepo: relationshipRepo,
		historyRepo:      historyRepo,
		matchIndexRepo:   matchIndexRepo,
		resolver:         resolver,
		events:           events,
	}
}

// Merge collapses sourceID into targetID. Both must be canonical; a merged
// participant fails with the true canonical id so the caller can retarget.
// The pointer update, record transfer, backfill, and audit row commit in one
// transaction.
func (e *Engine) Merge(ctx context.Context, sourceID, targetID, reason, actor string) (*models.MergeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.Merge")
	defer span.End()

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"source_id": sourceID,
		"target_id": targetID,
		"actor":     actor,
	})

	if sourceID == targetID {
		return nil, &models.ValidationError{Reason: "cannot merge a person into itself"}
	}

	var result *models.MergeResult
	err := e.guard.WithLock(ctx, mergeLockKey(sourceID, targetID), func(ctx context.Context) error {
		var err error
		result, err = e.mergeLocked(ctx, sourceID, targetID, reason, actor)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(map[string]any{
		"transferred_identifiers":   result.TransferredIdentifiers,
		"transferred_relationships": result.TransferredRelationships,
		"skipped_duplicates":        result.SkippedDuplicates,
	}).Info("Merged person")

	if e.events != nil {
		if err := e.events.EmitPersonMerged(ctx, result); err != nil {
			log.WithError(err).Warn("Failed to emit person.merged event")
		}
	}

	return result, nil
}

func (e *Engine) mergeLocked(ctx context.Context, sourceID, targetID, reason, actor string) (*models.MergeResult, error) {
	ctxTx, tx, err := e.personRepo.DB().GetTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctxTx)

	// Lock rows in a fixed order so two merges touching the same pair cannot
	// deadlock each other.
	firstID, secondID := sourceID, targetID
	if secondID < firstID {
		firstID, secondID = secondID, firstID
	}
	first, err := e.personRepo.GetForUpdate(ctxTx, firstID)
	if err != nil {
		return nil, err
	}
	second, err := e.personRepo.GetForUpdate(ctxTx, secondID)
	if err != nil {
		return nil, err
	}

	source, target := first, second
	if source.ID != sourceID {
		source, target = second, first
	}

	if !source.IsCanonical() {
		canonicalID, rerr := e.resolver.CanonicalID(ctxTx, source.ID)
		if rerr != nil {
			return nil, rerr
		}
		return nil, &models.MergeConflict{PersonID: source.ID, CanonicalID: canonicalID}
	}
	if !target.IsCanonical() {
		canonicalID, rerr := e.resolver.CanonicalID(ctxTx, target.ID)
		if rerr != nil {
			return nil, rerr
		}
		return nil, &models.MergeConflict{PersonID: target.ID, CanonicalID: canonicalID}
	}

	movedIdentifiers, skippedIdentifiers, err := e.identifierRepo.ReassignToPerson(ctxTx, source.ID, target.ID)
	if err != nil {
		return nil, err
	}

	movedRelationships, skippedRelationships, err := e.relationshipRepo.ReassignToPerson(ctxTx, source.ID, target.ID)
	if err != nil {
		return nil, err
	}

	backfilled, err := e.personRepo.BackfillFields(ctxTx, target.ID, source)
	if err != nil {
		return nil, err
	}

	if err := e.personRepo.SetMergedInto(ctxTx, source.ID, target.ID, reason); err != nil {
		return nil, err
	}

	// The source is no longer canonical so it must stop surfacing as a
	// blocking candidate.
	if err := e.matchIndexRepo.DeleteForPerson(ctxTx, source.ID); err != nil {
		return nil, err
	}

	history := &models.MergeHistory{
		SourcePersonID:           source.ID,
		TargetPersonID:           target.ID,
		Reason:                   reason,
		Actor:                    actor,
		TransferredIdentifiers:   movedIdentifiers,
		TransferredRelationships: movedRelationships,
		SkippedDuplicates:        skippedIdentifiers + skippedRelationships,
	}
	if len(backfilled) > 0 {
		b, _ := json.Marshal(backfilled)
		s := string(b)
		history.BackfilledFields = &s
	}
	if err := e.historyRepo.Create(ctxTx, history); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctxTx); err != nil {
		return nil, err
	}

	return &models.MergeResult{
		SourcePersonID:           source.ID,
		TargetPersonID:           target.ID,
		TransferredIdentifiers:   movedIdentifiers,
		TransferredRelationships: movedRelationships,
		SkippedDuplicates:        skippedIdentifiers + skippedRelationships,
		BackfilledFields:         backfilled,
		MergeHistoryID:           history.ID,
	}, nil
}

// Undo reverses the most recent active merge of sourceID by clearing the
// merge pointer and annotating the audit row. Identifiers and relationships
// moved by the merge stay on the target; undo restores addressability, not
// the pre-merge record layout.
func (e *Engine) Undo(ctx context.Context, sourceID, actor string) (*models.MergeHistory, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.Undo")
	defer span.End()

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"source_id": sourceID,
		"actor":     actor,
	})

	history, err := e.historyRepo.LatestActiveBySource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if history == nil {
		return nil, &models.ValidationError{Reason: "person has no active merge to undo"}
	}

	err = e.guard.WithLock(ctx, mergeLockKey(history.SourcePersonID, history.TargetPersonID), func(ctx context.Context) error {
		ctxTx, tx, err := e.personRepo.DB().GetTx(ctx, &sql.TxOptions{})
		if err != nil {
			return err
		}
		defer tx.Rollback(ctxTx)

		if err := e.personRepo.ClearMergedInto(ctxTx, history.SourcePersonID); err != nil {
			return err
		}
		if err := e.historyRepo.MarkUndone(ctxTx, history.ID, actor); err != nil {
			return err
		}

		return tx.Commit(ctxTx)
	})
	if err != nil {
		return nil, err
	}

	log.WithField("merge_history_id", history.ID).Info("Undid merge")

	if e.events != nil {
		if err := e.events.EmitMergeUndone(ctx, history); err != nil {
			log.WithError(err).Warn("Failed to emit merge.undone event")
		}
	}

	return history, nil
}

// mergeLockKey builds one lock key for a pair regardless of direction, so a
// merge of (a, b) and a merge of (b, a) serialize against each other.
func mergeLockKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "merge:" + a + ":" + b
}
