// Package household groups distinct people who share a contact identifier or
// address without ever treating the shared value as proof of identity.
package household

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/harborpaws/resolve/internal/repositories/blacklist"
	"github.com/harborpaws/resolve/internal/repositories/household"
	"github.com/harborpaws/resolve/internal/repositories/identifier"
	"github.com/harborpaws/resolve/internal/repositories/person"
	"github.com/harborpaws/resolve/internal/repositories/place"
	"github.com/harborpaws/resolve/internal/tracing"
	"github.com/harborpaws/resolve/pkg/locks"
	"github.com/harborpaws/resolve/pkg/models"
)

// MemberSink receives membership notifications
type MemberSink interface {
	EmitHouseholdMemberAdded(ctx context.Context, householdID, personID string) error
}

// Options tune what the soft blacklist demands before a blacklisted
// identifier can corroborate a match again.
type Options struct {
	MinNameSimilarity   float64
	RequireAddressMatch bool
}

// DefaultOptions matches the corroboration floor used by the scorer
func DefaultOptions() Options {
	return Options{
		MinNameSimilarity:   0.85,
		RequireAddressMatch: false,
	}
}

// Service files people into households when a shared identifier turns out to
// belong to several distinct owners, and registers that identifier on the
// soft blacklist so it stops driving merges on its own.
type Service struct {
	logger         ectologger.Logger
	guard          locks.Guard
	householdRepo  *household.Repository
	blacklistRepo  *blacklist.Repository
	personRepo     *person.Repository
	placeRepo      *place.Repository
	identifierRepo *identifier.Repository
	opts           Options
	events         MemberSink
}

// NewService creates a new household service
func NewService(
	logger ectologger.Logger,
	guard locks.Guard,
	householdRepo *household.Repository,
	blacklistRepo *blacklist.Repository,
	personRepo *person.Repository,
	placeRepo *place.Repository,
	identifierRepo *identifier.Repository,
	opts Options,
	events MemberSink,
) *Service {
	return &Service{
		logger:         logger,
		guard:          guard,
		householdRepo:  householdRepo,
		blacklistRepo:  blacklistRepo,
		personRepo:     personRepo,
		placeRepo:      placeRepo,
		identifierRepo: identifierRepo,
		opts:           opts,
		events:         events,
	}
}

// PlaceSharedIdentifier files every listed person into the household keyed by
// the shared identifier and blacklists the value. Safe to replay: household
// lookup, membership, and the blacklist entry are all upserts.
func (s *Service) PlaceSharedIdentifier(
	ctx context.Context,
	kind models.IdentifierKind,
	rawValue string,
	personIDs []string,
	rawAddress *string,
	zip *string,
	evidenceSource string,
) (*models.Household, error) {
	ctx, span := tracing.StartSpan(ctx, "household.Service.PlaceSharedIdentifier")
	defer span.End()

	normalized := identifier.Normalize(kind, rawValue)
	if normalized == "" {
		return nil, &models.ValidationError{Reason: "shared identifier normalizes to empty"}
	}
	if len(personIDs) < 2 {
		return nil, &models.ValidationError{Reason: "a household needs at least two members"}
	}

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"kind":         kind,
		"member_count": len(personIDs),
	})

	var hh *models.Household
	err := s.guard.WithLock(ctx, "household:"+string(kind)+":"+normalized, func(ctx context.Context) error {
		var placeID *string
		if rawAddress != nil && *rawAddress != "" {
			pl, err := s.placeRepo.FindOrCreate(ctx, *rawAddress, zip)
			if err != nil {
				return err
			}
			placeID = &pl.ID
		}

		var err error
		hh, err = s.householdRepo.FindOrCreate(ctx, placeID, kind, normalized)
		if err != nil {
			return err
		}

		for _, personID := range personIDs {
			if err := s.addMember(ctx, hh.ID, personID, evidenceSource); err != nil {
				return err
			}
		}

		ownerCount, err := s.identifierRepo.CountDistinctOwners(ctx, kind, normalized)
		if err != nil {
			return err
		}
		if ownerCount < len(personIDs) {
			ownerCount = len(personIDs)
		}

		_, err = s.blacklistRepo.Register(ctx, kind, normalized, ownerCount, s.opts.MinNameSimilarity, s.opts.RequireAddressMatch, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.WithField("household_id", hh.ID).Info("Filed shared identifier into household")
	return hh, nil
}

// AddPerson adds one more person to an existing household
func (s *Service) AddPerson(ctx context.Context, householdID, personID, evidenceSource string) (*models.HouseholdMember, error) {
	ctx, span := tracing.StartSpan(ctx, "household.Service.AddPerson")
	defer span.End()

	if _, err := s.householdRepo.Get(ctx, householdID); err != nil {
		return nil, err
	}
	if err := s.addMember(ctx, householdID, personID, evidenceSource); err != nil {
		return nil, err
	}

	members, err := s.householdRepo.ListMembers(ctx, householdID)
	if err != nil {
		return nil, err
	}
	for i := range members {
		if members[i].PersonID == personID {
			return &members[i], nil
		}
	}
	return nil, &models.InvariantViolation{Detail: "membership row missing after upsert"}
}

// RemovePerson closes a person's membership interval
func (s *Service) RemovePerson(ctx context.Context, householdID, personID string) error {
	ctx, span := tracing.StartSpan(ctx, "household.Service.RemovePerson")
	defer span.End()

	return s.householdRepo.CloseMembership(ctx, householdID, personID)
}

// Members lists a household's open membership intervals
func (s *Service) Members(ctx context.Context, householdID string) ([]models.HouseholdMember, error) {
	ctx, span := tracing.StartSpan(ctx, "household.Service.Members")
	defer span.End()

	return s.householdRepo.ListMembers(ctx, householdID)
}

func (s *Service) addMember(ctx context.Context, householdID, personID, evidenceSource string) error {
	if _, err := s.householdRepo.AddMember(ctx, householdID, personID, "member", evidenceSource, 1.0); err != nil {
		return err
	}
	if err := s.personRepo.SetHousehold(ctx, personID, householdID); err != nil {
		return err
	}
	if s.events != nil {
		if err := s.events.EmitHouseholdMemberAdded(ctx, householdID, personID); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Failed to emit household.member_added event")
		}
	}
	return nil
}
