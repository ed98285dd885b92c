package archive

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/orrn/printsim/internal/core"
	"github.com/orrn/printsim/internal/db"
)

const (
	recorderBuffer       = 256
	recorderWriteTimeout = 5 * time.Second
)

type NotificationSource interface {
	Subscribe(buffer int) *core.Subscription
}

// Recorder appends engine events and completed jobs to the audit tables.
// Nothing it writes is ever read back into the engine.
type Recorder struct {
	source  NotificationSource
	store   *db.Store
	logger  logrus.FieldLogger
	sub     *core.Subscription
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	lastRevision uint64
}

func NewRecorder(source NotificationSource, store *db.Store, logger logrus.FieldLogger) *Recorder {
	return &Recorder{
		source: source,
		store:  store,
		logger: logger.WithField("component", "recorder"),
	}
}

func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	r.sub = r.source.Subscribe(recorderBuffer)

	r.wg.Add(1)
	go r.run(r.sub)
}

// Stop closes the subscription and waits for buffered notifications to be
// written.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	sub := r.sub
	r.mu.Unlock()

	sub.Close()
	r.wg.Wait()
}

func (r *Recorder) run(sub *core.Subscription) {
	defer r.wg.Done()
	for n := range sub.C {
		ctx, cancel := context.WithTimeout(context.Background(), recorderWriteTimeout)
		if err := r.Handle(ctx, n); err != nil {
			r.logger.WithError(err).WithField("revision", n.Revision).Error("failed to record notification")
		}
		cancel()
	}
}

func (r *Recorder) Handle(ctx context.Context, n core.Notification) error {
	if r.lastRevision != 0 && n.Revision > r.lastRevision+1 {
		r.logger.WithFields(logrus.Fields{
			"from": r.lastRevision + 1,
			"to":   n.Revision - 1,
		}).Warn("notifications dropped, audit trail has a gap")
	}
	r.lastRevision = n.Revision

	if len(n.Events) == 0 {
		return nil
	}

	records := make([]*db.EventRecord, 0, len(n.Events))
	for _, ev := range n.Events {
		records = append(records, &db.EventRecord{
			Revision:   n.Revision,
			Kind:       string(ev.Kind),
			JobID:      ev.JobID,
			PrinterID:  ev.PrinterID,
			Message:    ev.Message,
			OccurredAt: ev.At,
		})
	}
	if err := r.store.Events.RecordEvents(ctx, records); err != nil {
		return err
	}

	for _, ev := range n.Events {
		if ev.Kind != core.EventJobCompleted || ev.Job == nil || ev.Job.CompletedAt == nil {
			continue
		}
		rec := &db.HistoryRecord{
			JobID:       ev.Job.ID,
			Type:        string(ev.Job.Type),
			Priority:    ev.Job.Priority,
			PrinterID:   ev.Job.PrinterID,
			CreatedAt:   ev.Job.CreatedAt,
			CompletedAt: *ev.Job.CompletedAt,
		}
		if err := r.store.History.RecordCompletion(ctx, rec); err != nil {
			return fmt.Errorf("job %s: %w", ev.Job.ID, err)
		}
	}
	return nil
}
