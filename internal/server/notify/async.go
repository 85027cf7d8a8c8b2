package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/galleryselect/internal/logging"
)

var (
	ErrQueueFull  = errors.New("notification queue full")
	ErrSinkClosed = errors.New("notification sink closed")
)

type job struct {
	address, subject, body string
}

// AsyncSink hands messages to a fixed pool of workers that deliver them
// through the wrapped Sink. Send never waits for delivery.
type AsyncSink struct {
	next    Sink
	log     logging.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan job
	wg     sync.WaitGroup
}

func NewAsyncSink(next Sink, workers, queueSize int, log logging.Logger) *AsyncSink {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	s := &AsyncSink{
		next:    next,
		log:     log.With("module", "async_sink"),
		timeout: 10 * time.Second,
		queue:   make(chan job, queueSize),
	}
	s.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go s.worker(i)
	}
	return s
}

func (s *AsyncSink) Send(_ context.Context, address, subject, body string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	select {
	case s.queue <- job{address: address, subject: subject, body: body}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *AsyncSink) worker(id int) {
	defer s.wg.Done()
	for j := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if err := s.next.Send(ctx, j.address, j.subject, j.body); err != nil {
			s.log.Warn(ctx, "notification delivery failed", "worker", id, "to", j.address, "error", err)
		}
		cancel()
	}
}

// Close stops accepting messages and waits until queued ones are handled.
func (s *AsyncSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	s.wg.Wait()
}
