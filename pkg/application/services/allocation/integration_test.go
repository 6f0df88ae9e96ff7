package allocation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/lotalloc/pkg/domain/entities"
	"github.com/vsinha/lotalloc/pkg/domain/repositories"
	"github.com/vsinha/lotalloc/pkg/infrastructure/cache"
	"github.com/vsinha/lotalloc/pkg/infrastructure/events"
	"github.com/vsinha/lotalloc/pkg/infrastructure/lock"
	"github.com/vsinha/lotalloc/pkg/infrastructure/repositories/sqlite"
	testhelpers "github.com/vsinha/lotalloc/pkg/infrastructure/testing"
)

func newLedgerSession(t *testing.T, operator string, locks repositories.LockAdvisor) (*Session, *sqlite.Store) {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.OpenDB(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.ApplyMigrations(ctx, db))

	clock := func() time.Time { return testhelpers.ScenarioToday.Add(9 * time.Hour) }
	store := sqlite.NewStore(db).WithClock(clock)
	require.NoError(t, store.LoadOrderLines(ctx, testhelpers.WarehouseLines()))
	require.NoError(t, store.LoadLots(ctx, testhelpers.WarehouseLots()))

	snapshots, err := cache.NewSnapshotCache(16)
	require.NoError(t, err)

	config := DefaultConfig()
	config.Operator = operator
	session := NewSession(Deps{
		Lots:         store,
		Gateway:      store,
		Reservations: store,
		Lines:        store,
		Locks:        locks,
		Cache:        snapshots,
		Events:       events.NewInMemoryEventStore(),
		Logger:       zerolog.Nop(),
		Clock:        clock,
	}, config)
	return session, store
}

func TestIntegration_SQLiteLedgerCommitAndCancel(t *testing.T) {
	ctx := context.Background()
	locks := lock.NewMemoryAdvisor(0)
	session, store := newLedgerSession(t, "alice", locks)

	require.NoError(t, session.LoadOrder(ctx, "SO1"))
	assert.Len(t, session.Lines(), 3)

	view, err := session.Select(ctx, "SO1-10")
	require.NoError(t, err)
	require.NoError(t, view.Err)
	require.Len(t, view.Lots, 2, "the expired vaccine lot is not offered")

	holder, err := locks.LockedBy(ctx, "SO1-10")
	require.NoError(t, err)
	assert.Equal(t, "alice", holder)

	proposal, err := session.AutoAllocate(ctx, "SO1-10")
	require.NoError(t, err)
	assert.True(t, proposal.Draft.Get("VA-2030-06").Equal(dec("50")))
	assert.True(t, proposal.Draft.Get("VA-2030-12").Equal(dec("30")))

	result, err := session.Commit(ctx, "SO1-10")
	require.NoError(t, err)
	require.Len(t, result.Reservations, 2)

	free, err := store.LotFree(ctx, "VA-2030-12")
	require.NoError(t, err)
	assert.True(t, free.Equal(dec("70")), "got %s", free)

	summary, err := session.Summary(ctx, "SO1-10")
	require.NoError(t, err)
	assert.True(t, summary.Committed.Equal(dec("80")))
	assert.True(t, summary.Remaining.IsZero())
	assert.Equal(t, entities.LineCommitted, summary.Status)
	assert.Equal(t, entities.ReservationHard, summary.Reservation)
	assert.Empty(t, summary.LockedBy, "own lock is not reported")

	var first entities.ReservationID
	for _, res := range result.Reservations {
		if res.LotID == "VA-2030-06" {
			first = res.ID
		}
	}
	require.NotEmpty(t, first)

	cancelled, err := session.Cancel(ctx, "SO1-10", first, entities.CancelWrongLot, "")
	require.NoError(t, err)
	assert.True(t, cancelled.AllocatedQuantity.Equal(dec("30")))

	free, err = store.LotFree(ctx, "VA-2030-06")
	require.NoError(t, err)
	assert.True(t, free.Equal(dec("50")))

	summary, err = session.Summary(ctx, "SO1-10")
	require.NoError(t, err)
	assert.True(t, summary.Committed.Equal(dec("30")))
	assert.Equal(t, entities.LineCommitted, summary.Status, "cancel does not change the line status")

	reversals, err := store.Reversals(ctx, "SO1-10")
	require.NoError(t, err)
	require.Len(t, reversals, 1)
	assert.Equal(t, entities.CancelWrongLot, reversals[0].Reason)

	session.Deselect(ctx)
	holder, err = locks.LockedBy(ctx, "SO1-10")
	require.NoError(t, err)
	assert.Empty(t, holder)
}

func TestIntegration_SecondOperatorSeesLock(t *testing.T) {
	ctx := context.Background()
	locks := lock.NewMemoryAdvisor(0)
	alice, _ := newLedgerSession(t, "alice", locks)
	bob, _ := newLedgerSession(t, "bob", locks)

	require.NoError(t, alice.LoadOrder(ctx, "SO2"))
	require.NoError(t, bob.LoadOrder(ctx, "SO2"))

	_, err := alice.Select(ctx, "SO2-10")
	require.NoError(t, err)

	summary, err := bob.Summary(ctx, "SO2-10")
	require.NoError(t, err)
	assert.Equal(t, "alice", summary.LockedBy)

	// the lock is advisory: bob can still draft
	result, err := bob.AutoAllocate(ctx, "SO2-10")
	require.NoError(t, err)
	assert.True(t, result.Draft.Get("GZ-1").Equal(dec("1.5")), "2400 g need 2.4 kg, only 1.5 kg are free")
}

func TestIntegration_AutoAllocateAllOnScenario(t *testing.T) {
	ctx := context.Background()
	session, _ := newLedgerSession(t, "", nil)
	require.NoError(t, session.LoadOrder(ctx, ""))

	results, err := session.AutoAllocateAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, 5)

	assert.True(t, results["SO1-20"].Draft.Get("SA-1").Equal(dec("20")), "legacy allocated 30 of 50")
	assert.True(t, results["SO1-30"].Draft.Get("SY-2027-03").Equal(dec("10")))
	assert.True(t, results["SO1-30"].Draft.Get("SY-UNDATED").Equal(dec("5")))
	assert.True(t, results["SO1-10"].Draft.Get("VA-2030-12").Equal(dec("30")))
	assert.True(t, results["SO2-20"].Draft.Total().Equal(dec("70")), "what SO1-10 left of the vaccine lots, never the expired one")
	assert.True(t, results["SO2-20"].Draft.Get("VA-2030-06").IsZero())
}
