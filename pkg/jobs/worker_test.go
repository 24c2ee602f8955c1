package jobs

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harborpaws/resolve/pkg/models"
)

func TestProgressTally(t *testing.T) {
	t.Run("CountsByOutcome", func(t *testing.T) {
		p := &progress{}
		p.recordProcessed(&models.MatchDecision{Outcome: models.OutcomeNewEntity})
		p.recordProcessed(&models.MatchDecision{Outcome: models.OutcomeAutoMatch})
		p.recordProcessed(&models.MatchDecision{Outcome: models.OutcomeReviewPending})
		p.recordProcessed(&models.MatchDecision{Outcome: models.OutcomeHouseholdMember})
		p.recordProcessed(nil)
		p.recordFailed()

		totals := p.snapshot()
		assert.Equal(t, 5, totals.RecordsProcessed)
		assert.Equal(t, 1, totals.RecordsFailed)
		assert.Equal(t, 2, totals.EntitiesCreated)
		assert.Equal(t, 1, totals.EntitiesMatched)
		assert.Equal(t, 1, totals.ReviewsQueued)
	})

	t.Run("SnapshotIsSafeDuringWrites", func(t *testing.T) {
		// The heartbeat goroutine snapshots while batch processing increments.
		p := &progress{}
		const writers = 8
		const perWriter = 500

		stop := make(chan struct{})
		readerDone := make(chan struct{})
		go func() {
			defer close(readerDone)
			for {
				select {
				case <-stop:
					return
				default:
					snap := p.snapshot()
					assert.GreaterOrEqual(t, snap.RecordsProcessed, snap.EntitiesMatched)
				}
			}
		}()

		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				for j := 0; j < perWriter; j++ {
					p.recordProcessed(&models.MatchDecision{Outcome: models.OutcomeAutoMatch})
				}
			}()
			go func() {
				defer wg.Done()
				for j := 0; j < perWriter; j++ {
					p.recordFailed()
				}
			}()
		}
		wg.Wait()
		close(stop)
		<-readerDone

		totals := p.snapshot()
		assert.Equal(t, writers*perWriter, totals.RecordsProcessed)
		assert.Equal(t, writers*perWriter, totals.EntitiesMatched)
		assert.Equal(t, writers*perWriter, totals.RecordsFailed)
	})
}
