package ingest

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/labgate/labgate/internal/platform/protocol"
)

// ErrQueueFull is returned when a worker's queue cannot take another message.
var ErrQueueFull = errors.New("ingest: worker queue full")

// Pool processes messages concurrently across sources while keeping each
// source on a single worker, so messages from one analyzer connection stay
// in arrival order.
type Pool struct {
	pipeline *Pipeline
	log      zerolog.Logger
	queues   []chan protocol.RawMessage
	wg       sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewPool starts workers goroutines, each draining its own queue of size
// queueSize.
func NewPool(pipeline *Pipeline, workers, queueSize int, log zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	p := &Pool{
		pipeline: pipeline,
		log:      log,
		queues:   make([]chan protocol.RawMessage, workers),
	}
	for i := range p.queues {
		p.queues[i] = make(chan protocol.RawMessage, queueSize)
		p.wg.Add(1)
		go p.run(i)
	}
	return p
}

// Dispatch queues a message on the worker owning its source. It never
// blocks: a full queue is reported to the caller, who decides whether to
// back off or reject upstream. The lock is held across the send so Close
// cannot close the queue underneath it.
func (p *Pool) Dispatch(raw protocol.RawMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("ingest: pool closed")
	}

	select {
	case p.queues[p.workerFor(raw.Source)] <- raw:
		return nil
	default:
		return ErrQueueFull
	}
}

// workerFor pins a source to one worker. Same source, same worker, so
// per-analyzer ordering holds.
func (p *Pool) workerFor(source string) int {
	h := fnv.New32a()
	h.Write([]byte(source))
	return int(h.Sum32() % uint32(len(p.queues)))
}

func (p *Pool) run(id int) {
	defer p.wg.Done()
	for raw := range p.queues[id] {
		if _, err := p.pipeline.Process(context.Background(), raw); err != nil {
			p.log.Warn().Err(err).Int("worker", id).Str("source", raw.Source).Msg("message rejected")
		}
	}
}

// Close stops accepting messages and waits for queued work to drain.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()

	p.wg.Wait()
}
