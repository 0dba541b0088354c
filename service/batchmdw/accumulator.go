package batchmdw

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kava-labs/webhook-batch-proxy/decode"
	"github.com/kava-labs/webhook-batch-proxy/logging"
)

var ErrAccumulatorClosed = errors.New("accumulator is closed, no new messages are accepted")

// BatchDispatcher delivers closed batches, Dispatch must resolve every member of the batch
type BatchDispatcher interface {
	Dispatch(batch *Batch)
}

// AccumulatorConfig wraps values used to create a new Accumulator
type AccumulatorConfig struct {
	// FlushAfter is how long a batch stays open after its first message joined
	FlushAfter time.Duration
	// MessageLimit is the number of messages that closes a batch immediately
	MessageLimit int
	Logger       *logging.ServiceLogger
}

// AccumulatorStats describes the batches currently open
type AccumulatorStats struct {
	OpenBatches     int
	PendingMessages int
}

// Accumulator groups messages by destination into batches and hands each batch to
// the dispatcher exactly once, when its flush window elapses or it reaches the message limit.
// At most one batch is open per destination key at any time.
type Accumulator struct {
	config     AccumulatorConfig
	dispatcher BatchDispatcher
	logger     *logging.ServiceLogger

	mu      sync.Mutex
	batches map[string]*Batch
	timers  map[string]*time.Timer
	closed  bool

	// batches claimed for dispatch that have not been resolved yet
	inflight sync.WaitGroup

	now func() time.Time
}

// NewAccumulator creates a new Accumulator delivering batches with dispatcher
func NewAccumulator(config AccumulatorConfig, dispatcher BatchDispatcher) *Accumulator {
	logger := config.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	if config.MessageLimit < 1 {
		config.MessageLimit = 1
	}

	return &Accumulator{
		config:     config,
		dispatcher: dispatcher,
		logger:     logger,
		batches:    make(map[string]*Batch),
		timers:     make(map[string]*time.Timer),
		now:        time.Now,
	}
}

// Join adds payload to the open batch for destination, opening one if needed,
// and returns the channel the batch's reply will be sent on.
// If the payload would push the open batch past the per message limits that batch
// is flushed first and the payload opens the next one.
func (a *Accumulator) Join(destination decode.Destination, payload decode.Payload) (<-chan *Reply, error) {
	reply := make(chan *Reply, 1)
	key := destination.Key()

	var closing []*Batch

	a.mu.Lock()

	if a.closed {
		a.mu.Unlock()
		return nil, ErrAccumulatorClosed
	}

	for {
		batch, open := a.batches[key]
		if !open {
			batch = a.openLocked(key, destination)
		}

		if !batch.fits(payload) {
			closing = append(closing, a.claimLocked(key))
			continue
		}

		batch.add(payload, reply)

		if batch.Size() >= a.config.MessageLimit {
			closing = append(closing, a.claimLocked(key))
		}

		break
	}

	a.mu.Unlock()

	for _, batch := range closing {
		a.logger.Debug().
			Str("destination", batch.Destination.Fingerprint()).
			Int("size", batch.Size()).
			Msg("batch full, flushing")

		go a.dispatch(batch)
	}

	return reply, nil
}

// openLocked opens a batch for key and arms its flush timer.
// The timer is never re-armed, the flush window is fixed from the first message.
func (a *Accumulator) openLocked(key string, destination decode.Destination) *Batch {
	batch := newBatch(destination, a.now())

	a.batches[key] = batch
	a.timers[key] = time.AfterFunc(a.config.FlushAfter, func() {
		a.expire(key, batch)
	})

	return batch
}

// claimLocked closes the open batch for key, after which it is
// owned by the caller that must dispatch it
func (a *Accumulator) claimLocked(key string) *Batch {
	batch := a.batches[key]
	delete(a.batches, key)

	if timer, ok := a.timers[key]; ok {
		timer.Stop()
		delete(a.timers, key)
	}

	a.inflight.Add(1)

	return batch
}

// expire flushes batch when its window elapses, unless it has already been closed
func (a *Accumulator) expire(key string, batch *Batch) {
	a.mu.Lock()

	if a.batches[key] != batch {
		a.mu.Unlock()
		return
	}

	a.claimLocked(key)

	a.mu.Unlock()

	a.logger.Debug().
		Str("destination", batch.Destination.Fingerprint()).
		Int("size", batch.Size()).
		Msg("batch window elapsed, flushing")

	a.dispatch(batch)
}

func (a *Accumulator) dispatch(batch *Batch) {
	defer a.inflight.Done()

	a.dispatcher.Dispatch(batch)
}

// Stats returns the number of open batches and the messages waiting in them
func (a *Accumulator) Stats() AccumulatorStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := AccumulatorStats{
		OpenBatches: len(a.batches),
	}

	for _, batch := range a.batches {
		stats.PendingMessages += batch.Size()
	}

	return stats
}

// Closed returns true once Close has been called
func (a *Accumulator) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.closed
}

// Close stops accepting messages, flushes every open batch and waits until all
// dispatched batches have been resolved or ctx is done
func (a *Accumulator) Close(ctx context.Context) error {
	a.mu.Lock()

	a.closed = true

	closing := make([]*Batch, 0, len(a.batches))
	for key := range a.batches {
		closing = append(closing, a.claimLocked(key))
	}

	a.mu.Unlock()

	a.logger.Info().Int("open_batches", len(closing)).Msg("flushing open batches")

	for _, batch := range closing {
		go a.dispatch(batch)
	}

	done := make(chan struct{})
	go func() {
		a.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
