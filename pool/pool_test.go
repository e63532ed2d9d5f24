package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fanOutTask struct {
	total     int
	mu        sync.Mutex
	sum       int
	remaining int32
	responses *int32
	done      chan struct{}
}

func newFanOutTask(total int, responses *int32) *fanOutTask {
	return &fanOutTask{total: total, remaining: int32(total), responses: responses, done: make(chan struct{})}
}

func (t *fanOutTask) TotalWorkers() int { return t.total }

func (t *fanOutTask) Consume(curr, total int) {
	t.mu.Lock()
	t.sum += curr
	t.mu.Unlock()
	if atomic.AddInt32(&t.remaining, -1) == 0 {
		atomic.AddInt32(t.responses, 1)
		close(t.done)
	}
}

type onceProducer struct{ task ConsumerTask }

func (p *onceProducer) Produce(poolSize int) (ConsumerTask, error) { return p.task, nil }

func TestAtMostOneResponder(t *testing.T) {
	p, err := New(4)
	require.NoError(t, err)
	defer p.Close()

	var responses int32
	task := newFanOutTask(4, &responses)
	p.AddTask(&onceProducer{task: task})

	select {
	case <-task.done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never completed")
	}
	assert.EqualValues(t, 1, responses)
}

func TestInvalidSize(t *testing.T) {
	_, err := New(0)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestCloseDrainsOutstandingProducers(t *testing.T) {
	p, err := New(2)
	require.NoError(t, err)

	var responses int32
	task := newFanOutTask(1, &responses)
	p.AddTask(&onceProducer{task: task})

	p.Close()
	assert.EqualValues(t, 1, responses)
}
