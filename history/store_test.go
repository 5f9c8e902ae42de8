package history

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NV7150/ImOTAR-sub000/depth"
	"github.com/NV7150/ImOTAR-sub000/errors"
	imotartest "github.com/NV7150/ImOTAR-sub000/internal/testing"
)

var ledgerT0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func startedEvent(id depth.JobID, tick depth.Tick, at time.Time) depth.Event {
	return depth.Event{
		Type:           depth.EventStarted,
		JobID:          id,
		Tick:           tick,
		At:             at,
		ColorTimestamp: at.Add(-10 * time.Millisecond),
		DepthTimestamp: at.Add(-5 * time.Millisecond),
		SkewMS:         5,
	}
}

func newLedger(t *testing.T, retention int) *Store {
	t.Helper()
	store, err := NewStore(imotartest.CreateTestDB(t), retention, nil)
	require.NoError(t, err)
	return store
}

func TestNewStore_Validation(t *testing.T) {
	_, err := NewStore(nil, 0, nil)
	assert.True(t, errors.IsInvalidConfigError(err))

	_, err = NewStore(imotartest.CreateTestDB(t), -1, nil)
	assert.True(t, errors.IsInvalidConfigError(err))
}

func TestLedger_CleanLifecycle(t *testing.T) {
	store := newLedger(t, 0)
	ctx := context.Background()

	store.OnEvent(startedEvent("j1", 4, ledgerT0))
	store.OnEvent(depth.Event{Type: depth.EventFinalized, JobID: "j1", Tick: 9, At: ledgerT0.Add(80 * time.Millisecond), Steps: 12})
	store.OnEvent(depth.Event{Type: depth.EventCompleted, JobID: "j1", Tick: 12, At: ledgerT0.Add(130 * time.Millisecond)})

	rec, err := store.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, rec.Outcome)
	assert.Equal(t, 12, rec.Steps)
	assert.Equal(t, uint64(4), rec.StartedTick)
	require.NotNil(t, rec.FinalizedTick)
	assert.Equal(t, uint64(9), *rec.FinalizedTick)
	require.NotNil(t, rec.CompletedTick)
	assert.Equal(t, uint64(12), *rec.CompletedTick)
	assert.Empty(t, rec.Fault)
	assert.True(t, rec.ColorTimestamp.Equal(ledgerT0.Add(-10*time.Millisecond)))
	assert.True(t, rec.DepthTimestamp.Equal(ledgerT0.Add(-5*time.Millisecond)))
	assert.InDelta(t, 5, rec.SkewMS, 1e-9)
	assert.Equal(t, 130*time.Millisecond, rec.Duration())
}

func TestLedger_InvalidatedKeepsOutcome(t *testing.T) {
	store := newLedger(t, 0)
	ctx := context.Background()

	store.OnEvent(startedEvent("j2", 1, ledgerT0))
	store.OnEvent(depth.Event{Type: depth.EventInvalidated, JobID: "j2", Tick: 2, At: ledgerT0.Add(time.Millisecond)})
	store.OnEvent(depth.Event{Type: depth.EventFinalized, JobID: "j2", Tick: 3, At: ledgerT0.Add(2 * time.Millisecond), Steps: 5, Invalidated: true})
	store.OnEvent(depth.Event{Type: depth.EventCompleted, JobID: "j2", Tick: 4, At: ledgerT0.Add(3 * time.Millisecond)})

	rec, err := store.Get(ctx, "j2")
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalidated, rec.Outcome, "promotion must not overwrite a terminal outcome")
	require.NotNil(t, rec.CompletedTick, "promotion still closes the row")
	assert.NotNil(t, rec.FinishedAt)
}

func TestLedger_FaultOutranksInvalidation(t *testing.T) {
	store := newLedger(t, 0)
	ctx := context.Background()

	store.OnEvent(startedEvent("j3", 1, ledgerT0))
	store.OnEvent(depth.Event{
		Type: depth.EventFinalized, JobID: "j3", Tick: 2, At: ledgerT0.Add(time.Millisecond),
		Steps: 2, Invalidated: true, Fault: "advance blew up",
	})
	store.OnEvent(depth.Event{Type: depth.EventCompleted, JobID: "j3", Tick: 5, At: ledgerT0.Add(2 * time.Millisecond)})

	rec, err := store.Get(ctx, "j3")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFaulted, rec.Outcome)
	assert.Contains(t, rec.Fault, "blew up")
}

func TestLedger_RecentAndByOutcome(t *testing.T) {
	store := newLedger(t, 0)
	ctx := context.Background()

	store.OnEvent(startedEvent("a", 1, ledgerT0))
	store.OnEvent(startedEvent("b", 2, ledgerT0.Add(time.Second)))
	store.OnEvent(startedEvent("c", 3, ledgerT0.Add(2*time.Second)))
	store.OnEvent(depth.Event{Type: depth.EventFinalized, JobID: "b", Tick: 4, At: ledgerT0.Add(3 * time.Second), Steps: 1})
	store.OnEvent(depth.Event{Type: depth.EventCompleted, JobID: "b", Tick: 5, At: ledgerT0.Add(4 * time.Second)})

	recent, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "c", recent[0].ID, "newest first")
	assert.Equal(t, "b", recent[1].ID)
	assert.Equal(t, "a", recent[2].ID)

	recent, err = store.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	completed, err := store.ByOutcome(ctx, OutcomeCompleted, 10)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "b", completed[0].ID)

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[OutcomeRunning])
	assert.Equal(t, 1, counts[OutcomeCompleted])
}

func TestLedger_GetUnknownIsNotFound(t *testing.T) {
	store := newLedger(t, 0)
	_, err := store.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestLedger_RetentionPrunesOldest(t *testing.T) {
	store := newLedger(t, 2)
	ctx := context.Background()

	store.OnEvent(startedEvent("old", 1, ledgerT0))
	store.OnEvent(startedEvent("mid", 2, ledgerT0.Add(time.Second)))
	store.OnEvent(startedEvent("new", 3, ledgerT0.Add(2*time.Second)))

	recent, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "new", recent[0].ID)
	assert.Equal(t, "mid", recent[1].ID)

	_, err = store.Get(ctx, "old")
	assert.True(t, errors.IsNotFoundError(err))
}

func TestOnEvent_WriteFailureIsSwallowed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO jobs").WillReturnError(errors.New("disk full"))

	store, err := NewStore(db, 0, nil)
	require.NoError(t, err)

	// Must log and return, never panic into the tick path.
	store.OnEvent(startedEvent("j-err", 1, ledgerT0))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOnEvent_UpdateFailureIsSwallowed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE jobs SET steps").WillReturnError(errors.New("locked"))

	store, err := NewStore(db, 0, nil)
	require.NoError(t, err)

	store.OnEvent(depth.Event{Type: depth.EventFinalized, JobID: "x", Tick: 1, At: ledgerT0, Steps: 3})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOnEvent_IgnoresNonLedgerEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store, err := NewStore(db, 0, nil)
	require.NoError(t, err)

	// No expectations set: any query would fail the test.
	store.OnEvent(depth.Event{Type: depth.EventFaulted, Tick: 1, At: ledgerT0, Fault: "refused"})
	store.OnEvent(depth.Event{Type: depth.EventGateChanged, Tick: 1, At: ledgerT0, GateFrom: "run", GateTo: "abort_fast"})
	assert.NoError(t, mock.ExpectationsWereMet())
}
