package core

import (
	"container/heap"
	"sort"
)

// jobHeap orders jobs by priority, breaking ties by insertion sequence so
// equal-priority jobs leave the queue in the order they arrived.
type jobHeap []*Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *jobHeap) Push(x any) {
	job := x.(*Job)
	job.index = len(*h)
	*h = append(*h, job)
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	job.index = -1
	*h = old[:n-1]
	return job
}

// PriorityQueue is a binary min-heap of jobs keyed by priority with an id
// index for lookups. It is not safe for concurrent use.
type PriorityQueue struct {
	items jobHeap
	byID  map[string]*Job
	seq   uint64
}

func NewPriorityQueue() *PriorityQueue {
	return &PriorityQueue{byID: make(map[string]*Job)}
}

func (q *PriorityQueue) Len() int { return len(q.items) }

func (q *PriorityQueue) Insert(job *Job) {
	q.seq++
	job.seq = q.seq
	heap.Push(&q.items, job)
	q.byID[job.ID] = job
}

// ExtractMin removes and returns the minimum, or nil when empty.
func (q *PriorityQueue) ExtractMin() *Job {
	if len(q.items) == 0 {
		return nil
	}
	job := heap.Pop(&q.items).(*Job)
	delete(q.byID, job.ID)
	return job
}

func (q *PriorityQueue) Peek() *Job {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

func (q *PriorityQueue) Get(id string) *Job {
	return q.byID[id]
}

func (q *PriorityQueue) RemoveByID(id string) *Job {
	job, ok := q.byID[id]
	if !ok {
		return nil
	}
	heap.Remove(&q.items, job.index)
	delete(q.byID, id)
	return job
}

// UpdatePriority reports false when id is not queued. The job keeps its
// original insertion sequence.
func (q *PriorityQueue) UpdatePriority(id string, priority int) bool {
	job, ok := q.byID[id]
	if !ok {
		return false
	}
	job.Priority = priority
	heap.Fix(&q.items, job.index)
	return true
}

// Snapshot returns copies in heap storage order.
func (q *PriorityQueue) Snapshot() []Job {
	out := make([]Job, 0, len(q.items))
	for _, j := range q.items {
		out = append(out, j.clone())
	}
	return out
}

// Sorted returns copies in dispatch order.
func (q *PriorityQueue) Sorted() []Job {
	out := q.Snapshot()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].seq < out[j].seq
	})
	return out
}

func (q *PriorityQueue) Clear() int {
	n := len(q.items)
	for _, j := range q.items {
		j.index = -1
	}
	q.items = nil
	q.byID = make(map[string]*Job)
	return n
}

func (q *PriorityQueue) valid() bool {
	for i, j := range q.items {
		if j.index != i {
			return false
		}
		if i > 0 && q.items[(i-1)/2].Priority > j.Priority {
			return false
		}
	}
	return len(q.byID) == len(q.items)
}
