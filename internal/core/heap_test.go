package core

import (
	"fmt"
	"math/rand"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func newJob(id string, priority int) *Job {
	return &Job{ID: id, Type: JobTypePDF, Priority: priority, Status: JobStatusQueued, Reason: DefaultReason}
}

func drain(q *PriorityQueue) []string {
	var ids []string
	for j := q.ExtractMin(); j != nil; j = q.ExtractMin() {
		ids = append(ids, j.ID)
	}
	return ids
}

func TestPriorityQueueExtractOrder(t *testing.T) {
	q := NewPriorityQueue()
	q.Insert(newJob("A", 3))
	q.Insert(newJob("B", 1))
	q.Insert(newJob("C", 2))

	assert.Check(t, q.valid())
	assert.DeepEqual(t, drain(q), []string{"B", "C", "A"})
	assert.Check(t, q.ExtractMin() == nil)
}

func TestPriorityQueueEqualPriorityIsFIFO(t *testing.T) {
	q := NewPriorityQueue()
	for i := 1; i <= 6; i++ {
		q.Insert(newJob(fmt.Sprintf("J%d", i), 2))
	}
	q.Insert(newJob("urgent", 1))

	assert.DeepEqual(t, drain(q), []string{"urgent", "J1", "J2", "J3", "J4", "J5", "J6"})
}

func TestPriorityQueuePeekDoesNotMutate(t *testing.T) {
	q := NewPriorityQueue()
	assert.Check(t, q.Peek() == nil)

	q.Insert(newJob("A", 4))
	q.Insert(newJob("B", 2))

	assert.Equal(t, q.Peek().ID, "B")
	assert.Equal(t, q.Peek().ID, "B")
	assert.Equal(t, q.Len(), 2)
}

func TestPriorityQueueRemoveByID(t *testing.T) {
	q := NewPriorityQueue()
	for i, p := range []int{5, 1, 4, 2, 3, 1, 5} {
		q.Insert(newJob(fmt.Sprintf("J%d", i), p))
	}

	removed := q.RemoveByID("J2")
	assert.Assert(t, removed != nil)
	assert.Equal(t, removed.ID, "J2")
	assert.Equal(t, removed.index, -1)
	assert.Check(t, q.valid())
	assert.Check(t, q.Get("J2") == nil)

	assert.Check(t, q.RemoveByID("J2") == nil)
	assert.Check(t, q.RemoveByID("missing") == nil)
	assert.Equal(t, q.Len(), 6)
}

func TestPriorityQueueUpdatePriority(t *testing.T) {
	q := NewPriorityQueue()
	q.Insert(newJob("A", 1))
	q.Insert(newJob("B", 3))
	q.Insert(newJob("C", 5))

	assert.Check(t, q.UpdatePriority("C", 1))
	assert.Check(t, q.valid())
	// C keeps its later arrival, so A still wins the tie.
	assert.Equal(t, q.Peek().ID, "A")

	assert.Check(t, q.UpdatePriority("A", 4))
	assert.Check(t, q.valid())
	assert.DeepEqual(t, drain(q), []string{"C", "B", "A"})

	assert.Check(t, !q.UpdatePriority("missing", 2))
}

func TestPriorityQueueSortedAndClear(t *testing.T) {
	q := NewPriorityQueue()
	q.Insert(newJob("A", 3))
	q.Insert(newJob("B", 1))
	q.Insert(newJob("C", 3))
	q.Insert(newJob("D", 2))

	var ids []string
	for _, j := range q.Sorted() {
		ids = append(ids, j.ID)
	}
	assert.DeepEqual(t, ids, []string{"B", "D", "A", "C"})
	assert.Check(t, is.Len(q.Snapshot(), 4))

	assert.Equal(t, q.Clear(), 4)
	assert.Equal(t, q.Len(), 0)
	assert.Check(t, q.Get("A") == nil)
}

func TestPriorityQueueRandomOperationsKeepHeapOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	q := NewPriorityQueue()
	live := map[string]bool{}
	next := 0

	for step := 0; step < 2000; step++ {
		switch op := rng.Intn(4); {
		case op == 0 || len(live) == 0:
			next++
			id := fmt.Sprintf("J%d", next)
			q.Insert(newJob(id, MinPriority+rng.Intn(MaxPriority)))
			live[id] = true
		case op == 1:
			last := q.Peek().Priority
			j := q.ExtractMin()
			assert.Equal(t, j.Priority, last)
			delete(live, j.ID)
		case op == 2:
			for id := range live {
				assert.Check(t, q.RemoveByID(id) != nil)
				delete(live, id)
				break
			}
		default:
			for id := range live {
				assert.Check(t, q.UpdatePriority(id, MinPriority+rng.Intn(MaxPriority)))
				break
			}
		}
		assert.Assert(t, q.valid(), "heap order broken at step %d", step)
		assert.Equal(t, q.Len(), len(live))
	}

	prev := MinPriority
	for j := q.ExtractMin(); j != nil; j = q.ExtractMin() {
		assert.Check(t, j.Priority >= prev)
		prev = j.Priority
	}
}
