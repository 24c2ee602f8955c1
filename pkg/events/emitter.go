// Package events handles event emission for resolution lifecycle changes
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/harborpaws/resolve/internal/tracing"
	"github.com/harborpaws/resolve/pkg/kafka"
	"github.com/harborpaws/resolve/pkg/models"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Publisher is the producer surface the emitter needs
type Publisher interface {
	PublishResolutionEvent(ctx context.Context, event *kafka.ResolutionEvent) error
}

// Emitter publishes resolution lifecycle events
type Emitter struct {
	producer Publisher
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitPersonCreated emits a person.created event
func (e *Emitter) EmitPersonCreated(ctx context.Context, person *models.Person, sourceSystem string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitPersonCreated")
	defer span.End()

	data, _ := json.Marshal(map[string]any{
		"schema_version": SchemaVersion,
		"display_name":   person.DisplayName,
	})

	event := &kafka.ResolutionEvent{
		EventType:    string(EventTypePersonCreated),
		PersonID:     person.ID,
		SourceSystem: sourceSystem,
		Data:         data,
	}

	if err := e.producer.PublishResolutionEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit person.created event")
		return err
	}
	return nil
}

// EmitDecisionRecorded emits a decision.recorded event
func (e *Emitter) EmitDecisionRecorded(ctx context.Context, decision *models.MatchDecision) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitDecisionRecorded")
	defer span.End()

	data, _ := json.Marshal(map[string]any{
		"schema_version": SchemaVersion,
		"decision_id":    decision.ID,
		"outcome":        decision.Outcome,
		"score":          decision.Score,
		"probability":    decision.Probability,
	})

	personID := ""
	if decision.ResultingPersonID != nil {
		personID = *decision.ResultingPersonID
	}

	event := &kafka.ResolutionEvent{
		EventType:    string(EventTypeDecisionRecorded),
		PersonID:     personID,
		SourceSystem: decision.SourceSystem,
		Data:         data,
	}

	if err := e.producer.PublishResolutionEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit decision.recorded event")
		return err
	}
	return nil
}

// EmitPersonMerged emits a person.merged event with the merge summary
func (e *Emitter) EmitPersonMerged(ctx context.Context, result *models.MergeResult) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitPersonMerged")
	defer span.End()

	data, _ := json.Marshal(map[string]any{
		"schema_version":            SchemaVersion,
		"source_person_id":          result.SourcePersonID,
		"transferred_identifiers":   result.TransferredIdentifiers,
		"transferred_relationships": result.TransferredRelationships,
		"skipped_duplicates":        result.SkippedDuplicates,
		"backfilled_fields":         result.BackfilledFields,
		"merge_history_id":          result.MergeHistoryID,
	})

	event := &kafka.ResolutionEvent{
		EventType: string(EventTypePersonMerged),
		PersonID:  result.TargetPersonID,
		Data:      data,
	}

	if err := e.producer.PublishResolutionEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit person.merged event")
		return err
	}
	return nil
}

// EmitMergeUndone emits a merge.undone event
func (e *Emitter) EmitMergeUndone(ctx context.Context, history *models.MergeHistory) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitMergeUndone")
	defer span.End()

	data, _ := json.Marshal(map[string]any{
		"schema_version":   SchemaVersion,
		"target_person_id": history.TargetPersonID,
		"merge_history_id": history.ID,
	})

	event := &kafka.ResolutionEvent{
		EventType: string(EventTypeMergeUndone),
		PersonID:  history.SourcePersonID,
		Data:      data,
	}

	if err := e.producer.PublishResolutionEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit merge.undone event")
		return err
	}
	return nil
}

// EmitHouseholdMemberAdded emits a household.member_added event
func (e *Emitter) EmitHouseholdMemberAdded(ctx context.Context, householdID, personID string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitHouseholdMemberAdded")
	defer span.End()

	data, _ := json.Marshal(map[string]any{
		"schema_version": SchemaVersion,
		"household_id":   householdID,
	})

	event := &kafka.ResolutionEvent{
		EventType: string(EventTypeHouseholdMemberAdded),
		PersonID:  personID,
		Data:      data,
	}

	if err := e.producer.PublishResolutionEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit household.member_added event")
		return err
	}
	return nil
}
