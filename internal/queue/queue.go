package queue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrQueueEmpty  = errors.New("queue is empty")
	ErrQueueClosed = errors.New("queue is closed")
)

// Task is one keyword waiting for a worker.
type Task struct {
	ID          string
	Keyword     string
	MaxProducts int
	Priority    int
	CreatedAt   time.Time
}

func NewTask(keyword string, maxProducts int) *Task {
	return &Task{
		ID:          uuid.New().String(),
		Keyword:     keyword,
		MaxProducts: maxProducts,
		CreatedAt:   time.Now(),
	}
}

type Queue interface {
	Push(task *Task) error
	Pop(ctx context.Context) (*Task, error)
	TryPop() (*Task, error)
	Size() int
	Close() error
}

// InMemoryQueue hands out tasks by descending priority, FIFO within the
// same priority. Pop blocks until a task arrives, the queue is closed or
// ctx is done.
type InMemoryQueue struct {
	mu     sync.Mutex
	tasks  []*Task
	closed bool
	notify chan struct{}
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		tasks:  make([]*Task, 0),
		notify: make(chan struct{}),
	}
}

func (q *InMemoryQueue) Push(task *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.tasks = append(q.tasks, task)
	sort.SliceStable(q.tasks, func(i, j int) bool {
		return q.tasks[i].Priority > q.tasks[j].Priority
	})
	q.wake()

	return nil
}

func (q *InMemoryQueue) Pop(ctx context.Context) (*Task, error) {
	for {
		q.mu.Lock()
		if len(q.tasks) > 0 {
			task := q.shift()
			q.mu.Unlock()
			return task, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		wait := q.notify
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

// TryPop never blocks. An empty open queue yields ErrQueueEmpty.
func (q *InMemoryQueue) TryPop() (*Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) > 0 {
		return q.shift(), nil
	}
	if q.closed {
		return nil, ErrQueueClosed
	}
	return nil, ErrQueueEmpty
}

func (q *InMemoryQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Close stops accepting tasks. Tasks already queued can still be popped.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		q.wake()
	}
	return nil
}

func (q *InMemoryQueue) shift() *Task {
	task := q.tasks[0]
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	return task
}

// wake releases every waiter. Callers hold mu.
func (q *InMemoryQueue) wake() {
	close(q.notify)
	q.notify = make(chan struct{})
}

type BatchQueue struct {
	queue     Queue
	batchSize int
}

func NewBatchQueue(q Queue, batchSize int) *BatchQueue {
	return &BatchQueue{
		queue:     q,
		batchSize: batchSize,
	}
}

func (b *BatchQueue) PushBatch(tasks []*Task) error {
	for _, task := range tasks {
		if err := b.queue.Push(task); err != nil {
			return err
		}
	}
	return nil
}

// PopBatch drains up to batchSize tasks without blocking.
func (b *BatchQueue) PopBatch() ([]*Task, error) {
	var tasks []*Task

	for i := 0; i < b.batchSize; i++ {
		task, err := b.queue.TryPop()
		if err != nil {
			if errors.Is(err, ErrQueueEmpty) || errors.Is(err, ErrQueueClosed) {
				break
			}
			return tasks, err
		}
		tasks = append(tasks, task)
	}

	return tasks, nil
}
