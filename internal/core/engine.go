package core

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultTickPeriod = 500 * time.Millisecond
	MinTickPeriod     = 100 * time.Millisecond
	MaxTickPeriod     = 2000 * time.Millisecond

	// Each tick adds a random 2-12 units of progress, scaled by printer efficiency.
	minIncrement  = 2.0
	incrementSpan = 10.0

	unspecifiedReason = "Unspecified"
)

type Options struct {
	TickPeriod      time.Duration
	AutoProcess     bool
	Printers        []Printer
	HistoryCapacity int
	LogCapacity     int
	Clock           Clock
	Random          RandomSource
	Logger          logrus.FieldLogger
}

type TickReport struct {
	Assigned  []string
	Completed []string
	Skipped   bool
}

// Engine owns all scheduling state. Every operation, including ticks, runs
// under a single mutex.
type Engine struct {
	mu       sync.Mutex
	store    *JobStore
	printers *PrinterPool
	events   *EventLog
	clock    Clock
	rng      RandomSource
	logger   logrus.FieldLogger

	autoProcess bool
	tickPeriod  time.Duration
	nextID      uint64

	revision uint64
	pending  []Event
	dirty    bool
	subs     map[uint64]*Subscription
	nextSub  uint64

	ticking atomic.Bool
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.TickPeriod == 0 {
		opts.TickPeriod = DefaultTickPeriod
	}
	if !validTickPeriod(opts.TickPeriod) {
		return nil, fmt.Errorf("%w: tick period %s outside %s-%s", ErrInvalidInput, opts.TickPeriod, MinTickPeriod, MaxTickPeriod)
	}
	if opts.Printers == nil {
		opts.Printers = DefaultPrinters()
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Random == nil {
		opts.Random = NewSeededRandom(0)
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	pool, err := NewPrinterPool(opts.Printers)
	if err != nil {
		return nil, fmt.Errorf("failed to build printer pool: %w", err)
	}

	return &Engine{
		store:       NewJobStore(opts.HistoryCapacity),
		printers:    pool,
		events:      NewEventLog(opts.LogCapacity),
		clock:       opts.Clock,
		rng:         opts.Random,
		logger:      opts.Logger.WithField("component", "engine"),
		autoProcess: opts.AutoProcess,
		tickPeriod:  opts.TickPeriod,
		subs:        make(map[uint64]*Subscription),
	}, nil
}

func validTickPeriod(d time.Duration) bool {
	return d >= MinTickPeriod && d <= MaxTickPeriod
}

func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopCh = make(chan struct{})
	stopCh := e.stopCh
	e.mu.Unlock()

	e.wg.Add(1)
	go e.dispatcher(stopCh)
}

func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopCh)
	e.mu.Unlock()

	e.wg.Wait()
}

// dispatcher re-arms its timer after every tick with the period in force at
// that moment, so period changes apply from the next boundary.
func (e *Engine) dispatcher(stopCh <-chan struct{}) {
	defer e.wg.Done()

	timer := time.NewTimer(e.TickPeriod())
	defer timer.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-timer.C:
			e.Tick()
			timer.Reset(e.TickPeriod())
		}
	}
}

// Tick runs one assignment phase (when automatic processing is on) and one
// progress phase. A tick that starts while another is running is skipped.
func (e *Engine) Tick() TickReport {
	if !e.ticking.CompareAndSwap(false, true) {
		e.logger.Debug("tick skipped: previous tick still running")
		return TickReport{Skipped: true}
	}
	defer e.ticking.Store(false)

	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.commit()

	// Jobs dispatched during this tick start advancing on the next one.
	advancing := e.store.ActiveJobs()

	var report TickReport
	if e.autoProcess {
		report.Assigned = e.assign()
	}
	report.Completed = e.advance(advancing)
	return report
}

func (e *Engine) assign() []string {
	var assigned []string
	for _, p := range e.printers.Assignable(e.store.BusyPrinters()) {
		head := e.store.Queue().Peek()
		if head == nil {
			break
		}
		if head.Status == JobStatusDelayed {
			e.logger.WithField("job_id", head.ID).Debug("assignment held by delayed head of queue")
			break
		}
		job := e.store.DispatchMin(p.ID)
		e.emit(EventJobStarted, job, p.ID, "Printer %d started: %s", p.ID, job.ID)
		assigned = append(assigned, job.ID)
	}
	return assigned
}

func (e *Engine) advance(jobs []*Job) []string {
	var completed []string
	now := e.clock.Now()
	for _, job := range jobs {
		if job.Status != JobStatusProcessing {
			continue
		}
		multiplier := e.printers.EfficiencyMultiplier(job.PrinterID)
		increment := (e.rng.Float64()*incrementSpan + minIncrement) * multiplier
		job.Progress = math.Min(job.Progress+increment, 100)
		e.dirty = true

		e.logger.WithFields(logrus.Fields{
			"job_id":   job.ID,
			"progress": job.Progress,
		}).Debug("job progressed")

		if job.Progress < 100 {
			continue
		}
		done, evicted := e.store.Complete(job.ID, now)
		e.printers.CreditCompletion(done.PrinterID)
		e.emit(EventJobCompleted, done, done.PrinterID, "Job Finished: %s", done.ID)
		completed = append(completed, done.ID)
		for _, old := range evicted {
			e.logger.WithField("job_id", old.ID).Debug("completed job evicted from history")
		}
	}
	return completed
}

func (e *Engine) Submit(jobType JobType, priority int) (Job, error) {
	t, ok := ParseJobType(string(jobType))
	if !ok {
		return Job{}, fmt.Errorf("%w: unknown job type %q", ErrInvalidInput, jobType)
	}
	if !ValidPriority(priority) {
		return Job{}, fmt.Errorf("%w: priority %d outside %d-%d", ErrInvalidInput, priority, MinPriority, MaxPriority)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.commit()

	e.nextID++
	job := &Job{
		ID:        fmt.Sprintf("%s%d", strings.ToUpper(string(t)), e.nextID),
		Type:      t,
		Priority:  priority,
		Status:    JobStatusQueued,
		Reason:    DefaultReason,
		CreatedAt: e.clock.Now(),
	}
	e.store.Enqueue(job)
	e.emit(EventJobCreated, job, 0, "Job Created: %s (Priority: %d)", job.ID, priority)
	return job.clone(), nil
}

func (e *Engine) StartJob(id string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.commit()

	if e.store.Queue().Get(id) == nil {
		e.emitMissing(id, "Job %s not found in queue.", id)
		return ResultNotFound
	}
	printer, ok := e.printers.FirstAssignable(e.store.BusyPrinters())
	if !ok {
		e.emit(EventPrinterUnavailable, nil, 0, "No available printers to start Job %s", id)
		return ResultResourceUnavailable
	}
	job := e.store.Dispatch(id, printer.ID)
	e.emit(EventJobStarted, job, printer.ID, "Manually started Job %s on Printer %d", job.ID, printer.ID)
	return ResultOK
}

// StartNextJob dispatches the queue minimum even when it is Delayed; an
// explicit operator command overrides the hold.
func (e *Engine) StartNextJob() Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.commit()

	head := e.store.Queue().Peek()
	if head == nil {
		e.emit(EventJobNotFound, nil, 0, "Queue is empty.")
		return ResultNotFound
	}
	printer, ok := e.printers.FirstAssignable(e.store.BusyPrinters())
	if !ok {
		e.emit(EventPrinterUnavailable, nil, 0, "No printers available.")
		return ResultResourceUnavailable
	}
	job := e.store.DispatchMin(printer.ID)
	e.emit(EventJobStarted, job, printer.ID, "Started Job %s on Printer %d", job.ID, printer.ID)
	return ResultOK
}

func (e *Engine) CancelJob(id string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.commit()

	if job := e.store.CancelQueued(id); job != nil {
		e.emit(EventJobCancelled, job, 0, "Job Cancelled: %s", id)
		return ResultOK
	}
	if job := e.store.CancelActive(id); job != nil {
		e.emit(EventJobCancelled, job, job.PrinterID, "Active Job Cancelled: %s on Printer %d", id, job.PrinterID)
		return ResultOK
	}
	e.emitMissing(id, "Could not find job %s to cancel", id)
	return ResultNotFound
}

func (e *Engine) DelayJob(id, reason string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.commit()

	job := e.store.Queue().Get(id)
	if job == nil {
		e.emitMissing(id, "Could not find queued job %s to delay", id)
		return ResultNotFound
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = unspecifiedReason
	}
	job.Status = JobStatusDelayed
	job.Reason = reason
	e.emit(EventJobDelayed, job, 0, "Job %s Delayed: %s", id, reason)
	return ResultOK
}

func (e *Engine) ResumeJob(id string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.commit()

	job := e.store.Queue().Get(id)
	if job == nil {
		e.emitMissing(id, "Could not find queued job %s to resume", id)
		return ResultNotFound
	}
	job.Status = JobStatusQueued
	job.Reason = DefaultReason
	e.emit(EventJobResumed, job, 0, "Job %s Resumed", id)
	return ResultOK
}

func (e *Engine) UpdateJobPriority(id string, priority int) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.commit()

	if !ValidPriority(priority) {
		e.emit(EventInvalidInput, nil, 0, "Rejected priority %d for job %s", priority, id)
		return ResultInvalidInput
	}
	if !e.store.Queue().UpdatePriority(id, priority) {
		e.emitMissing(id, "Could not find queued job %s to reprioritize", id)
		return ResultNotFound
	}
	e.emit(EventJobPriorityUpdated, e.store.Queue().Get(id), 0, "Job %s priority updated to %d", id, priority)
	return ResultOK
}

func (e *Engine) TogglePrinter(id int64) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.commit()

	_, newStatus, err := e.printers.Toggle(id)
	if err != nil {
		e.emit(EventPrinterNotFound, nil, id, "Printer %d not found", id)
		return ResultNotFound
	}
	e.emit(EventPrinterToggled, nil, id, "Printer %d is now %s", id, newStatus)
	return ResultOK
}

func (e *Engine) SetAutoProcess(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.commit()

	e.autoProcess = enabled
	if enabled {
		e.emit(EventSettingsChanged, nil, 0, "Automatic processing enabled")
	} else {
		e.emit(EventSettingsChanged, nil, 0, "Automatic processing disabled")
	}
}

func (e *Engine) SetTickPeriod(d time.Duration) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.commit()

	if !validTickPeriod(d) {
		e.emit(EventInvalidInput, nil, 0, "Rejected tick period %s", d)
		return ResultInvalidInput
	}
	e.tickPeriod = d
	e.emit(EventSettingsChanged, nil, 0, "Tick period set to %s", d)
	return ResultOK
}

func (e *Engine) ClearQueue() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.commit()

	n := e.store.ClearQueue()
	e.emit(EventQueueCleared, nil, 0, "Queue Cleared")
	return n
}

func (e *Engine) ClearHistory() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.commit()

	n := e.store.ClearHistory()
	e.emit(EventHistoryCleared, nil, 0, "Job History Cleared")
	return n
}

func (e *Engine) Job(id string) (Job, Container, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	job, where := e.store.Locate(id)
	if job == nil {
		return Job{}, ContainerNone, false
	}
	return job.clone(), where, true
}

func (e *Engine) Printer(id int64) (Printer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.printers.Get(id)
}

func (e *Engine) AutoProcess() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.autoProcess
}

func (e *Engine) TickPeriod() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tickPeriod
}

func (e *Engine) Revision() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.revision
}

func (e *Engine) Events() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.events.Entries()
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Snapshot{
		Revision:    e.revision,
		QueuedJobs:  e.store.Queue().Sorted(),
		ActiveJobs:  e.store.Active(),
		Completed:   e.store.Completed(),
		Printers:    e.printers.List(),
		LogEntries:  e.events.Lines(),
		AutoProcess: e.autoProcess,
		TickPeriod:  e.tickPeriod,
		TickMillis:  e.tickPeriod.Milliseconds(),
	}
}

func (e *Engine) emitMissing(id, format string, args ...any) {
	e.record(Event{Kind: EventJobNotFound, JobID: id, Message: fmt.Sprintf(format, args...)})
}

func (e *Engine) emit(kind EventKind, job *Job, printerID int64, format string, args ...any) {
	ev := Event{
		Kind:      kind,
		PrinterID: printerID,
		Message:   fmt.Sprintf(format, args...),
	}
	if job != nil {
		c := job.clone()
		ev.Job = &c
		ev.JobID = job.ID
	}
	e.record(ev)
}

func (e *Engine) record(ev Event) {
	ev.At = e.clock.Now()
	e.events.Append(ev)
	e.pending = append(e.pending, ev)

	entry := e.logger.WithField("event", ev.Kind)
	if ev.JobID != "" {
		entry = entry.WithField("job_id", ev.JobID)
	}
	if ev.PrinterID != 0 {
		entry = entry.WithField("printer_id", ev.PrinterID)
	}
	switch ev.Kind {
	case EventJobNotFound, EventPrinterNotFound, EventPrinterUnavailable, EventInvalidInput:
		entry.Warn(ev.Message)
	default:
		entry.Info(ev.Message)
	}
}
