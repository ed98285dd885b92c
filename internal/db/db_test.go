package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(Config{Path: filepath.Join(t.TempDir(), "nested", "printsim.db")})
	assert.NilError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "printsim.db")

	first, err := Open(Config{Path: path})
	assert.NilError(t, err)
	assert.NilError(t, first.Settings.SetSetting(context.Background(), "k", "v"))
	assert.NilError(t, first.Close())

	second, err := Open(Config{Path: path})
	assert.NilError(t, err)
	defer second.Close()

	var applied int
	assert.NilError(t, second.DB().QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, applied, len(migrations))

	s, err := second.Settings.GetSetting(context.Background(), "k")
	assert.NilError(t, err)
	assert.Equal(t, s.Value, "v")
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Check(t, is.ErrorContains(err, "database path is required"))
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	_, err := store.Settings.GetSetting(ctx, "missing")
	assert.Check(t, is.ErrorIs(err, ErrNotFound))

	assert.NilError(t, store.Settings.SetSetting(ctx, "auto_process", "true"))
	assert.NilError(t, store.Settings.SetSetting(ctx, "auto_process", "false"))
	assert.NilError(t, store.Settings.SetSetting(ctx, "tick_period_ms", "250"))

	s, err := store.Settings.GetSetting(ctx, "auto_process")
	assert.NilError(t, err)
	assert.Equal(t, s.Value, "false")

	all, err := store.Settings.ListSettings(ctx)
	assert.NilError(t, err)
	assert.Assert(t, is.Len(all, 2))
	assert.Equal(t, all[0].Key, "auto_process")

	assert.NilError(t, store.Settings.DeleteSetting(ctx, "auto_process"))
	_, err = store.Settings.GetSetting(ctx, "auto_process")
	assert.Check(t, is.ErrorIs(err, ErrNotFound))
}

func TestWebhooks(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	w := &Webhook{Name: "ops", URL: "http://example.invalid/hook", EventsJSON: `["job_completed"]`, Enabled: true}
	assert.NilError(t, store.Webhooks.CreateWebhook(ctx, w))
	assert.Check(t, w.ID > 0)

	off := &Webhook{Name: "off", URL: "http://example.invalid/off", EventsJSON: `[]`, Enabled: false}
	assert.NilError(t, store.Webhooks.CreateWebhook(ctx, off))

	got, err := store.Webhooks.GetWebhookByID(ctx, w.ID)
	assert.NilError(t, err)
	assert.Equal(t, got.Name, "ops")
	assert.Equal(t, got.Secret, "")
	assert.Check(t, got.Enabled)

	enabled, err := store.Webhooks.ListEnabledWebhooks(ctx)
	assert.NilError(t, err)
	assert.Check(t, is.Len(enabled, 1))

	got.Secret = "s3cret"
	got.Enabled = false
	assert.NilError(t, store.Webhooks.UpdateWebhook(ctx, got))
	got, err = store.Webhooks.GetWebhookByID(ctx, w.ID)
	assert.NilError(t, err)
	assert.Equal(t, got.Secret, "s3cret")
	assert.Check(t, !got.Enabled)

	assert.NilError(t, store.Webhooks.DeleteWebhook(ctx, w.ID))
	assert.Check(t, is.ErrorIs(store.Webhooks.DeleteWebhook(ctx, w.ID), ErrNotFound))
	_, err = store.Webhooks.GetWebhookByID(ctx, w.ID)
	assert.Check(t, is.ErrorIs(err, ErrNotFound))

	all, err := store.Webhooks.ListWebhooks(ctx)
	assert.NilError(t, err)
	assert.Check(t, is.Len(all, 1))
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	base := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)

	for i, id := range []string{"PDF1", "DOC2", "IMG3", "PDF4"} {
		r := &HistoryRecord{
			JobID:       id,
			Type:        []string{"pdf", "doc", "img", "pdf"}[i],
			Priority:    i + 1,
			PrinterID:   int64(i%2 + 1),
			CreatedAt:   base,
			CompletedAt: base.Add(time.Duration(i) * time.Minute),
		}
		assert.NilError(t, store.History.RecordCompletion(ctx, r))
	}

	n, err := store.History.CountHistory(ctx)
	assert.NilError(t, err)
	assert.Equal(t, n, int64(4))

	all, err := store.History.ListHistory(ctx, HistoryFilter{})
	assert.NilError(t, err)
	assert.Assert(t, is.Len(all, 4))
	assert.Equal(t, all[0].JobID, "PDF4")
	assert.Check(t, all[0].CompletedAt.Equal(base.Add(3*time.Minute)))

	pdfs, err := store.History.ListHistory(ctx, HistoryFilter{Search: "PdF"})
	assert.NilError(t, err)
	assert.Check(t, is.Len(pdfs, 2))

	byID, err := store.History.ListHistory(ctx, HistoryFilter{Search: "g3"})
	assert.NilError(t, err)
	assert.Assert(t, is.Len(byID, 1))
	assert.Equal(t, byID[0].JobID, "IMG3")

	onTwo, err := store.History.ListHistory(ctx, HistoryFilter{PrinterID: 2, Limit: 1})
	assert.NilError(t, err)
	assert.Assert(t, is.Len(onTwo, 1))
	assert.Equal(t, onTwo[0].JobID, "PDF4")
}

func TestEvents(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	at := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)

	batch := []*EventRecord{
		{Revision: 1, Kind: "job_created", JobID: "PDF1", Message: "Job Created: PDF1 (Priority: 1)", OccurredAt: at},
		{Revision: 2, Kind: "printer_toggled", PrinterID: 3, Message: "Printer 3 is now Offline", OccurredAt: at},
	}
	assert.NilError(t, store.Events.RecordEvents(ctx, batch))
	assert.Check(t, batch[1].ID > batch[0].ID)
	assert.NilError(t, store.Events.RecordEvents(ctx, nil))

	n, err := store.Events.CountEvents(ctx)
	assert.NilError(t, err)
	assert.Equal(t, n, int64(2))

	events, err := store.Events.ListEvents(ctx, EventFilter{})
	assert.NilError(t, err)
	assert.Assert(t, is.Len(events, 2))
	assert.Equal(t, events[0].Kind, "printer_toggled")
	assert.Equal(t, events[0].JobID, "")
	assert.Equal(t, events[0].PrinterID, int64(3))
	assert.Equal(t, events[1].Revision, uint64(1))

	jobEvents, err := store.Events.ListEvents(ctx, EventFilter{JobID: "PDF1"})
	assert.NilError(t, err)
	assert.Check(t, is.Len(jobEvents, 1))
}

func TestArchiveRecords(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	r := &ArchiveRecord{ArchiveFile: "archive_2024_03.db", TableName: "event_log", RowCount: 12}
	assert.NilError(t, store.Archives.RecordArchive(ctx, r))

	records, err := store.Archives.ListArchiveRecords(ctx, 0, 0)
	assert.NilError(t, err)
	assert.Assert(t, is.Len(records, 1))
	assert.Equal(t, records[0].RowCount, int64(12))

	assert.NilError(t, store.Archives.DeleteArchiveRecords(ctx, "archive_2024_03.db"))
	records, err = store.Archives.ListArchiveRecords(ctx, 10, 0)
	assert.NilError(t, err)
	assert.Check(t, is.Len(records, 0))
}
