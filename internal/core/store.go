package core

import "time"

const DefaultHistoryCapacity = 100

// JobStore partitions every known job between the queue, the active set and
// the bounded completed history. Each method moves a job between at most two
// containers.
type JobStore struct {
	queue     *PriorityQueue
	active    []*Job
	activeIdx map[string]*Job
	completed []*Job
	capacity  int
}

func NewJobStore(historyCapacity int) *JobStore {
	if historyCapacity <= 0 {
		historyCapacity = DefaultHistoryCapacity
	}
	return &JobStore{
		queue:     NewPriorityQueue(),
		activeIdx: make(map[string]*Job),
		capacity:  historyCapacity,
	}
}

func (s *JobStore) Queue() *PriorityQueue { return s.queue }

func (s *JobStore) Enqueue(job *Job) {
	s.queue.Insert(job)
}

func (s *JobStore) Locate(id string) (*Job, Container) {
	if j := s.queue.Get(id); j != nil {
		return j, ContainerQueue
	}
	if j, ok := s.activeIdx[id]; ok {
		return j, ContainerActive
	}
	for _, j := range s.completed {
		if j.ID == id {
			return j, ContainerCompleted
		}
	}
	return nil, ContainerNone
}

// Dispatch moves a queued job onto printerID. It returns nil when the job is
// not queued.
func (s *JobStore) Dispatch(id string, printerID int64) *Job {
	job := s.queue.RemoveByID(id)
	if job == nil {
		return nil
	}
	s.activate(job, printerID)
	return job
}

func (s *JobStore) DispatchMin(printerID int64) *Job {
	job := s.queue.ExtractMin()
	if job == nil {
		return nil
	}
	s.activate(job, printerID)
	return job
}

func (s *JobStore) activate(job *Job, printerID int64) {
	job.Status = JobStatusProcessing
	job.Reason = DefaultReason
	job.PrinterID = printerID
	s.active = append(s.active, job)
	s.activeIdx[job.ID] = job
}

// Complete retires an active job into history, evicting the oldest entries
// beyond capacity.
func (s *JobStore) Complete(id string, at time.Time) (job *Job, evicted []*Job) {
	job = s.removeActive(id)
	if job == nil {
		return nil, nil
	}
	job.Status = JobStatusCompleted
	job.Progress = 100
	job.CompletedAt = &at

	s.completed = append([]*Job{job}, s.completed...)
	if len(s.completed) > s.capacity {
		evicted = s.completed[s.capacity:]
		s.completed = s.completed[:s.capacity:s.capacity]
	}
	return job, evicted
}

func (s *JobStore) CancelQueued(id string) *Job {
	return s.queue.RemoveByID(id)
}

func (s *JobStore) CancelActive(id string) *Job {
	return s.removeActive(id)
}

func (s *JobStore) removeActive(id string) *Job {
	job, ok := s.activeIdx[id]
	if !ok {
		return nil
	}
	delete(s.activeIdx, id)
	for i, j := range s.active {
		if j == job {
			s.active = append(s.active[:i], s.active[i+1:]...)
			break
		}
	}
	return job
}

// ActiveJobs returns the live active jobs in dispatch order. Callers inside
// the engine may mutate progress; everything else gets copies via Active.
func (s *JobStore) ActiveJobs() []*Job {
	out := make([]*Job, len(s.active))
	copy(out, s.active)
	return out
}

func (s *JobStore) Active() []Job {
	out := make([]Job, 0, len(s.active))
	for _, j := range s.active {
		out = append(out, j.clone())
	}
	return out
}

func (s *JobStore) Completed() []Job {
	out := make([]Job, 0, len(s.completed))
	for _, j := range s.completed {
		out = append(out, j.clone())
	}
	return out
}

func (s *JobStore) BusyPrinters() map[int64]bool {
	busy := make(map[int64]bool, len(s.active))
	for _, j := range s.active {
		busy[j.PrinterID] = true
	}
	return busy
}

func (s *JobStore) ClearQueue() int {
	return s.queue.Clear()
}

func (s *JobStore) ClearHistory() int {
	n := len(s.completed)
	s.completed = nil
	return n
}
