package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"gotest.tools/v3/poll"

	"github.com/orrn/printsim/internal/core"
	"github.com/orrn/printsim/internal/db"
	"github.com/orrn/printsim/internal/logging"
)

type stepRandom struct{}

func (stepRandom) Float64() float64 { return 0.99 }

func openStore(t *testing.T) *db.Store {
	t.Helper()
	store, err := db.Open(db.Config{Path: filepath.Join(t.TempDir(), "audit.db")})
	assert.NilError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newEngine(t *testing.T) *core.Engine {
	t.Helper()
	e, err := core.NewEngine(core.Options{
		Printers: []core.Printer{{ID: 1, Name: "P1", Efficiency: 100}},
		Random:   stepRandom{},
		Logger:   logging.Discard(),
	})
	assert.NilError(t, err)
	return e
}

func TestRecorderWritesEventsAndCompletions(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	engine := newEngine(t)

	rec := NewRecorder(engine, store, logging.Discard())
	rec.Start()
	rec.Start()

	_, err := engine.Submit(core.JobTypePDF, 2)
	assert.NilError(t, err)
	assert.Equal(t, engine.StartNextJob(), core.ResultOK)
	for i := 0; i < 10; i++ {
		engine.Tick()
	}
	assert.Equal(t, engine.CancelJob("nope"), core.ResultNotFound)

	rec.Stop()
	rec.Stop()

	history, err := store.History.ListHistory(ctx, db.HistoryFilter{})
	assert.NilError(t, err)
	assert.Assert(t, is.Len(history, 1))
	assert.Equal(t, history[0].JobID, "PDF1")
	assert.Equal(t, history[0].Type, "pdf")
	assert.Equal(t, history[0].Priority, 2)
	assert.Equal(t, history[0].PrinterID, int64(1))

	events, err := store.Events.ListEvents(ctx, db.EventFilter{})
	assert.NilError(t, err)
	assert.Assert(t, is.Len(events, 4))
	assert.Equal(t, events[0].Kind, string(core.EventJobNotFound))
	assert.Equal(t, events[1].Kind, string(core.EventJobCompleted))
	assert.Equal(t, events[3].Kind, string(core.EventJobCreated))
	assert.Equal(t, events[3].Revision, uint64(1))
}

func TestRecorderHandleToleratesGaps(t *testing.T) {
	store := openStore(t)
	rec := NewRecorder(newEngine(t), store, logging.Discard())
	at := time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC)

	assert.NilError(t, rec.Handle(context.Background(), core.Notification{Revision: 1}))
	assert.NilError(t, rec.Handle(context.Background(), core.Notification{
		Revision: 5,
		Events:   []core.Event{{Kind: core.EventQueueCleared, At: at, Message: "Queue Cleared"}},
	}))

	n, err := store.Events.CountEvents(context.Background())
	assert.NilError(t, err)
	assert.Equal(t, n, int64(1))
}

func TestArchiverMovesOldRows(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	dir := t.TempDir()
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	old := now.AddDate(0, 0, -45)
	recent := now.AddDate(0, 0, -2)
	for i, completed := range []time.Time{old, old, recent} {
		assert.NilError(t, store.History.RecordCompletion(ctx, &db.HistoryRecord{
			JobID: []string{"PDF1", "DOC2", "IMG3"}[i], Type: "pdf", Priority: 1, PrinterID: 1,
			CreatedAt: completed, CompletedAt: completed,
		}))
	}
	assert.NilError(t, store.Events.RecordEvents(ctx, []*db.EventRecord{
		{Revision: 1, Kind: "job_created", JobID: "PDF1", Message: "old", OccurredAt: old},
		{Revision: 2, Kind: "job_created", JobID: "IMG3", Message: "new", OccurredAt: recent},
	}))

	archiver, err := NewArchiver(store, ArchiveConfig{ArchivePath: dir, ArchiveDays: 30, Now: func() time.Time { return now }}, logging.Discard())
	assert.NilError(t, err)

	moved, err := archiver.RunArchive(ctx)
	assert.NilError(t, err)
	assert.Equal(t, moved, int64(3))

	remaining, err := store.History.ListHistory(ctx, db.HistoryFilter{})
	assert.NilError(t, err)
	assert.Assert(t, is.Len(remaining, 1))
	assert.Equal(t, remaining[0].JobID, "IMG3")

	n, err := store.Events.CountEvents(ctx)
	assert.NilError(t, err)
	assert.Equal(t, n, int64(1))

	archives, err := archiver.ListArchives(ctx)
	assert.NilError(t, err)
	assert.Assert(t, is.Len(archives, 1))
	assert.Equal(t, archives[0].Filename, "archive_2024_06.db")
	assert.Equal(t, archives[0].RowCount, int64(3))
	assert.Equal(t, archives[0].DateRange, "2024_06")

	moved, err = archiver.RunArchive(ctx)
	assert.NilError(t, err)
	assert.Equal(t, moved, int64(0))

	assert.Check(t, is.ErrorIs(archiver.DeleteArchive(ctx, "../audit.db"), ErrInvalidName))
	assert.Check(t, is.ErrorIs(archiver.DeleteArchive(ctx, "archive_1999_01.db"), ErrArchiveNotFound))
	assert.NilError(t, archiver.DeleteArchive(ctx, "archive_2024_06.db"))

	_, err = os.Stat(filepath.Join(dir, "archive_2024_06.db"))
	assert.Check(t, os.IsNotExist(err))
	records, err := store.Archives.ListArchiveRecords(ctx, 0, 0)
	assert.NilError(t, err)
	assert.Check(t, is.Len(records, 0))
}

func TestRecorderKeepsUpWithRunningEngine(t *testing.T) {
	store := openStore(t)
	engine := newEngine(t)
	assert.Equal(t, engine.SetTickPeriod(core.MinTickPeriod), core.ResultOK)
	engine.SetAutoProcess(true)

	rec := NewRecorder(engine, store, logging.Discard())
	rec.Start()
	defer rec.Stop()

	engine.Start()
	defer engine.Stop()

	_, err := engine.Submit(core.JobTypeImg, 1)
	assert.NilError(t, err)

	poll.WaitOn(t, func(poll.LogT) poll.Result {
		n, err := store.History.CountHistory(context.Background())
		if err != nil {
			return poll.Error(err)
		}
		if n == 1 {
			return poll.Success()
		}
		return poll.Continue("%d completions recorded", n)
	}, poll.WithTimeout(10*time.Second), poll.WithDelay(50*time.Millisecond))
}
