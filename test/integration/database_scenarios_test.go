package integration

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborpaws/resolve/internal/database"
	"github.com/harborpaws/resolve/internal/repositories/blacklist"
	householdrepo "github.com/harborpaws/resolve/internal/repositories/household"
	"github.com/harborpaws/resolve/internal/repositories/identifier"
	jobrepo "github.com/harborpaws/resolve/internal/repositories/job"
	"github.com/harborpaws/resolve/internal/repositories/matchconfig"
	"github.com/harborpaws/resolve/internal/repositories/matchdecision"
	"github.com/harborpaws/resolve/internal/repositories/matchindex"
	"github.com/harborpaws/resolve/internal/repositories/mergehistory"
	"github.com/harborpaws/resolve/internal/repositories/person"
	"github.com/harborpaws/resolve/internal/repositories/place"
	"github.com/harborpaws/resolve/internal/repositories/rawrecord"
	"github.com/harborpaws/resolve/internal/repositories/relationship"
	"github.com/harborpaws/resolve/pkg/household"
	"github.com/harborpaws/resolve/pkg/ingest"
	"github.com/harborpaws/resolve/pkg/locks"
	"github.com/harborpaws/resolve/pkg/matching"
	"github.com/harborpaws/resolve/pkg/merging"
	"github.com/harborpaws/resolve/pkg/models"
)

// dbHarness wires real repositories against the database named by the DB_*
// environment variables. Tests skip when no database is configured; the
// schema is expected to be migrated.
type dbHarness struct {
	sqlxDB      *sqlx.DB
	db          database.DB
	logger      ectologger.Logger
	persons     *person.Repository
	identifiers *identifier.Repository
	relations   *relationship.Repository
	history     *mergehistory.Repository
	index       *matchindex.Repository
	decisions   *matchdecision.Repository
	configs     *matchconfig.Repository
	blacklists  *blacklist.Repository
	households  *householdrepo.Repository
	places      *place.Repository
	rawRecords  *rawrecord.Repository
	jobs        *jobrepo.Repository
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func setupDB(t *testing.T) *dbHarness {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	host := os.Getenv("DB_HOST")
	if host == "" {
		t.Skip("Database not configured")
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, envOr("DB_PORT", "5432"), envOr("DB_USER_NAME", "postgres"),
		os.Getenv("DB_PASSWORD"), envOr("DB_NAME", "resolve"), envOr("DB_SSL_MODE", "disable"))

	sqlxDB, err := sqlx.Open("postgres", dsn)
	require.NoError(t, err)
	sqlxDB.SetMaxOpenConns(10)
	t.Cleanup(func() { sqlxDB.Close() })

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	db := database.NewInstance(sqlxDB, logger)

	return &dbHarness{
		sqlxDB:      sqlxDB,
		db:          db,
		logger:      logger,
		persons:     person.NewRepository(db, logger),
		identifiers: identifier.NewRepository(db, logger),
		relations:   relationship.NewRepository(db, logger),
		history:     mergehistory.NewRepository(db, logger),
		index:       matchindex.NewRepository(db, logger),
		decisions:   matchdecision.NewRepository(db, logger),
		configs:     matchconfig.NewRepository(db, logger),
		blacklists:  blacklist.NewRepository(db, logger),
		households:  householdrepo.NewRepository(db, logger),
		places:      place.NewRepository(db, logger),
		rawRecords:  rawrecord.NewRepository(db, logger),
		jobs:        jobrepo.NewRepository(db, logger),
	}
}

func (h *dbHarness) mergeEngine(resolver *merging.Resolver) *merging.Engine {
	return merging.NewEngine(h.logger, locks.NewKeyedMutex(), h.persons, h.identifiers,
		h.relations, h.history, h.index, resolver, nil)
}

func (h *dbHarness) newPerson(t *testing.T, ctx context.Context, first, last string) *models.Person {
	t.Helper()
	p, err := h.persons.Create(ctx, &first, &last, first+" "+last)
	require.NoError(t, err)
	return p
}

func TestCanonicalResolutionLaws(t *testing.T) {
	h := setupDB(t)
	ctx := context.Background()

	a := h.newPerson(t, ctx, "Ada", "Quist")
	b := h.newPerson(t, ctx, "Ada", "Quist")
	c := h.newPerson(t, ctx, "Ada", "Quist")
	require.NoError(t, h.persons.SetMergedInto(ctx, a.ID, b.ID, "duplicate"))
	require.NoError(t, h.persons.SetMergedInto(ctx, b.ID, c.ID, "duplicate"))

	resolver := merging.NewResolver(h.persons, 10, h.logger)

	t.Run("CanonicalResolvesToItself", func(t *testing.T) {
		got, err := resolver.CanonicalOf(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, c.ID, got.ID)
	})

	t.Run("ChainResolvesTransitively", func(t *testing.T) {
		fromA, err := resolver.CanonicalOf(ctx, a.ID)
		require.NoError(t, err)
		fromB, err := resolver.CanonicalOf(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, c.ID, fromA.ID)
		assert.Equal(t, c.ID, fromB.ID)
	})

	t.Run("DepthOverflowFailsLoudly", func(t *testing.T) {
		shallow := merging.NewResolver(h.persons, 1, h.logger)
		_, err := shallow.CanonicalOf(ctx, a.ID)
		require.Error(t, err)
		assert.True(t, models.IsInvariantViolation(err))
	})

	t.Run("PointerCycleFailsLoudly", func(t *testing.T) {
		d := h.newPerson(t, ctx, "Loop", "One")
		e := h.newPerson(t, ctx, "Loop", "Two")
		require.NoError(t, h.persons.SetMergedInto(ctx, d.ID, e.ID, "duplicate"))
		require.NoError(t, h.persons.SetMergedInto(ctx, e.ID, d.ID, "duplicate"))

		_, err := resolver.CanonicalOf(ctx, d.ID)
		require.Error(t, err)
		assert.True(t, models.IsInvariantViolation(err))
	})
}

func TestMergeUndoAsymmetry(t *testing.T) {
	h := setupDB(t)
	ctx := context.Background()
	resolver := merging.NewResolver(h.persons, 10, h.logger)
	engine := h.mergeEngine(resolver)

	source := h.newPerson(t, ctx, "Noel", "Vasquez")
	target := h.newPerson(t, ctx, "Noel", "Vazquez")
	phone := fmt.Sprintf("5%09d", time.Now().UnixNano()%1_000_000_000)
	_, err := h.identifiers.Attach(ctx, source.ID, models.IdentifierKindPhone, phone, 1.0, "itest")
	require.NoError(t, err)

	result, err := engine.Merge(ctx, source.ID, target.ID, "manual duplicate", "tester")
	require.NoError(t, err)
	assert.Equal(t, 1, result.TransferredIdentifiers)

	t.Run("SourcePointsAtTarget", func(t *testing.T) {
		canonicalID, err := resolver.CanonicalID(ctx, source.ID)
		require.NoError(t, err)
		assert.Equal(t, target.ID, canonicalID)
	})

	t.Run("MergedTargetIsRejectedWithCanonical", func(t *testing.T) {
		other := h.newPerson(t, ctx, "Sam", "Oduya")
		_, err := engine.Merge(ctx, other.ID, source.ID, "manual duplicate", "tester")
		require.Error(t, err)
		assert.True(t, models.IsMergeConflict(err))
		assert.Contains(t, err.Error(), target.ID)
	})

	t.Run("UndoClearsPointerButKeepsTransfers", func(t *testing.T) {
		history, err := engine.Undo(ctx, source.ID, "tester")
		require.NoError(t, err)
		require.NotNil(t, history.UndoneAt)

		restored, err := h.persons.Get(ctx, source.ID)
		require.NoError(t, err)
		assert.True(t, restored.IsCanonical())

		sourceIDs, err := h.identifiers.ListByPerson(ctx, source.ID)
		require.NoError(t, err)
		assert.Empty(t, sourceIDs)

		targetIDs, err := h.identifiers.ListByPerson(ctx, target.ID)
		require.NoError(t, err)
		assert.Len(t, targetIDs, 1)
	})
}

func TestIngestReplayIdempotence(t *testing.T) {
	h := setupDB(t)
	ctx := context.Background()
	svc := ingest.NewService(h.logger, h.rawRecords, h.jobs, 100, 3)

	req := models.IngestRequest{
		SourceSystem: "itest-" + uuid.New().String()[:8],
		SourceTable:  "adopters",
		SourceRowID:  uuid.New().String(),
		Payload:      []byte(`{"full_name": "Iris Chen", "phone": "5035550177"}`),
	}

	first, err := svc.Ingest(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := svc.Ingest(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.RawRecordID, second.RawRecordID)
}

func TestConcurrentResolutionCreatesOneEntity(t *testing.T) {
	h := setupDB(t)
	ctx := context.Background()

	if _, err := h.configs.GetActive(ctx); err != nil {
		t.Skip("No active match configuration; run migrations first")
	}

	guard := locks.NewKeyedMutex()
	generator := matching.NewGenerator(h.identifiers, h.index, matching.NewScorer(), 5, h.logger)
	householdSvc := household.NewService(h.logger, guard, h.households, h.blacklists,
		h.persons, h.places, h.identifiers, household.DefaultOptions(), nil)
	engine := matching.NewEngine(h.logger, guard, generator, h.persons, h.identifiers,
		h.decisions, h.configs, h.blacklists, h.index, householdSvc, nil, true)

	phone := fmt.Sprintf("5%09d", time.Now().UnixNano()%1_000_000_000)
	first := "Riley"
	last := "Parker-" + uuid.New().String()[:8]
	src := models.SourceContext{SourceSystem: "itest", SourceTable: "adopters"}

	const callers = 8
	decisions := make([]*models.MatchDecision, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			signals := &models.SignalSet{FirstName: &first, LastName: &last, Phone: &phone}
			decisions[i], errs[i] = engine.ResolveIdentity(ctx, signals, src)
		}(i)
	}
	wg.Wait()

	created := 0
	var personID string
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, decisions[i].ResultingPersonID)
		if decisions[i].Outcome == models.OutcomeNewEntity {
			created++
		}
		if personID == "" {
			personID = *decisions[i].ResultingPersonID
		}
		assert.Equal(t, personID, *decisions[i].ResultingPersonID)
	}
	assert.Equal(t, 1, created)

	owners, err := h.identifiers.FindOwners(ctx, models.IdentifierKindPhone,
		identifier.Normalize(models.IdentifierKindPhone, phone))
	require.NoError(t, err)
	assert.Len(t, owners, 1)
}

func TestSweepStaleRequeue(t *testing.T) {
	h := setupDB(t)
	ctx := context.Background()
	system := "itest-" + uuid.New().String()[:8]

	expireClaim := func(t *testing.T, jobID string) {
		t.Helper()
		_, err := h.sqlxDB.ExecContext(ctx, `
			UPDATE jobs SET status = 'processing', claimed_by = 'w-itest',
				lease_expires_at = $2, updated_at = now()
			WHERE id = $1`, jobID, time.Now().UTC().Add(-time.Minute))
		require.NoError(t, err)
	}

	jobA, err := h.jobs.Enqueue(ctx, models.EnqueueJobRequest{
		SourceSystem: system, SourceTable: "adopters",
	}, 100, 3)
	require.NoError(t, err)

	t.Run("ExpiredLeaseRequeuesExactlyOnce", func(t *testing.T) {
		expireClaim(t, jobA.ID)

		n, err := h.jobs.SweepStale(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1)

		swept, err := h.jobs.Get(ctx, jobA.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusQueued, swept.Status)
		assert.Nil(t, swept.ClaimedBy)

		// A second sweep finds nothing to transition for this job
		_, err = h.jobs.SweepStale(ctx)
		require.NoError(t, err)
		again, err := h.jobs.Get(ctx, jobA.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusQueued, again.Status)
	})

	t.Run("FoldsIntoFreshQueuedJobInsteadOfDuplicating", func(t *testing.T) {
		expireClaim(t, jobA.ID)

		jobB, err := h.jobs.Enqueue(ctx, models.EnqueueJobRequest{
			SourceSystem: system, SourceTable: "adopters",
		}, 100, 3)
		require.NoError(t, err)
		require.NotEqual(t, jobA.ID, jobB.ID)

		_, err = h.jobs.SweepStale(ctx)
		require.NoError(t, err)

		folded, err := h.jobs.Get(ctx, jobA.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusFailed, folded.Status)

		fresh, err := h.jobs.Get(ctx, jobB.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusQueued, fresh.Status)
	})
}

func TestAdvisoryLockGuard(t *testing.T) {
	h := setupDB(t)
	guard := locks.NewPostgresGuard(h.db, h.logger)
	key := "itest:" + uuid.New().String()

	t.Run("ReleasesBetweenSequentialCalls", func(t *testing.T) {
		// Release must happen on the acquiring session or every later call
		// spins until its deadline.
		for i := 0; i < 3; i++ {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			ran := false
			err := guard.WithLock(ctx, key, func(ctx context.Context) error {
				ran = true
				return nil
			})
			cancel()
			require.NoError(t, err)
			assert.True(t, ran)
		}
	})

	t.Run("MutualExclusionAcrossConnections", func(t *testing.T) {
		var inside int32
		var wg sync.WaitGroup
		errs := make([]error, 4)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				errs[i] = guard.WithLock(ctx, key, func(ctx context.Context) error {
					if atomic.AddInt32(&inside, 1) != 1 {
						return fmt.Errorf("advisory lock admitted two holders")
					}
					time.Sleep(50 * time.Millisecond)
					atomic.AddInt32(&inside, -1)
					return nil
				})
			}(i)
		}
		wg.Wait()
		for i := range errs {
			require.NoError(t, errs[i])
		}
	})
}
