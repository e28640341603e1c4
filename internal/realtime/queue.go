package realtime

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/gatherly/eventwire/internal/domain"
	"github.com/gatherly/eventwire/internal/errors"
	"github.com/gatherly/eventwire/internal/metrics"
)

// Broadcaster is the consumer-side port the queue flushes through.
// Satisfied by *BroadcastRouter.
type Broadcaster interface {
	Broadcast(msg *domain.Message, target domain.Target) (int, error)
}

// QueueConfig holds the queue's construction parameters. FlushInterval is
// required. MaxAttempts caps flush retries per message; 0 retries forever,
// which matches the historical behavior: a message that can never be
// delivered is retried on every flush with no backoff or deduplication.
type QueueConfig struct {
	FlushInterval time.Duration
	MaxAttempts   int
}

type queuedMessage struct {
	msg      *domain.Message
	attempts int
}

// MessageQueue buffers messages that could not be delivered immediately and
// retries them on the next flush cycle. Enqueue order is preserved within a
// flush batch; a flush never blocks concurrent enqueues.
type MessageQueue struct {
	router Broadcaster
	clock  clockwork.Clock
	cfg    QueueConfig

	mu     sync.Mutex
	buffer []*queuedMessage

	started  atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMessageQueue creates a queue flushing through the given broadcaster.
func NewMessageQueue(router Broadcaster, clock clockwork.Clock, cfg QueueConfig) (*MessageQueue, error) {
	if cfg.FlushInterval <= 0 {
		return nil, errors.ValidationError("queue flush interval must be positive").
			WithContext("flush_interval", cfg.FlushInterval.String())
	}
	if cfg.MaxAttempts < 0 {
		return nil, errors.ValidationError("queue max attempts must not be negative").
			WithContext("max_attempts", cfg.MaxAttempts)
	}
	return &MessageQueue{
		router: router,
		clock:  clock,
		cfg:    cfg,
		done:   make(chan struct{}),
	}, nil
}

// Enqueue appends a message to the buffer, assigning its id and timestamp if
// absent. Both are immutable once set. Returns the message id.
func (q *MessageQueue) Enqueue(msg *domain.Message) string {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = q.clock.Now().UTC()
	}

	q.mu.Lock()
	q.buffer = append(q.buffer, &queuedMessage{msg: msg})
	depth := len(q.buffer)
	q.mu.Unlock()

	metrics.QueueDepth.Set(float64(depth))
	slog.Debug("Message enqueued", "message_id", msg.ID, "type", msg.Type, "depth", depth)
	return msg.ID
}

// Flush atomically swaps out the buffer and attempts to broadcast each
// message in enqueue order. Messages whose broadcast fails go back onto the
// new buffer for the next cycle (or are dropped once the retry cap is hit).
// Returns the number of messages processed successfully.
func (q *MessageQueue) Flush() int {
	q.mu.Lock()
	batch := q.buffer
	q.buffer = nil
	q.mu.Unlock()

	if len(batch) == 0 {
		return 0
	}

	start := q.clock.Now()
	processed := 0
	var requeue []*queuedMessage

	for _, qm := range batch {
		target := domain.Target{}
		if qm.msg.Target != nil {
			target = *qm.msg.Target
		}

		if _, err := q.router.Broadcast(qm.msg, target); err != nil {
			qm.attempts++
			if q.cfg.MaxAttempts > 0 && qm.attempts >= q.cfg.MaxAttempts {
				metrics.QueueDroppedTotal.Inc()
				slog.Warn("Dropping message after retry cap", "message_id", qm.msg.ID, "attempts", qm.attempts, "error", err)
				continue
			}
			metrics.QueueRequeuedTotal.Inc()
			slog.Debug("Re-queueing message after failed broadcast", "message_id", qm.msg.ID, "attempts", qm.attempts, "error", err)
			requeue = append(requeue, qm)
			continue
		}
		processed++
	}

	q.mu.Lock()
	q.buffer = append(q.buffer, requeue...)
	depth := len(q.buffer)
	q.mu.Unlock()

	metrics.QueueDepth.Set(float64(depth))
	metrics.QueueFlushDuration.Observe(q.clock.Since(start).Seconds())
	return processed
}

// Len returns the number of buffered messages.
func (q *MessageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buffer)
}

// Start launches the periodic flush loop. Calling Start twice is a no-op.
func (q *MessageQueue) Start() {
	if !q.started.CompareAndSwap(false, true) {
		return
	}
	q.wg.Add(1)
	go q.run()
	slog.Info("Message queue started", "flush_interval", q.cfg.FlushInterval, "max_attempts", q.cfg.MaxAttempts)
}

// Stop terminates the flush loop and discards any buffered messages.
// Idempotent and safe to call from any state.
func (q *MessageQueue) Stop() {
	q.stopOnce.Do(func() {
		close(q.done)
	})
	q.wg.Wait()

	q.mu.Lock()
	dropped := len(q.buffer)
	q.buffer = nil
	q.mu.Unlock()

	metrics.QueueDepth.Set(0)
	if dropped > 0 {
		slog.Info("Message queue stopped", "discarded_messages", dropped)
	}
}

func (q *MessageQueue) run() {
	defer q.wg.Done()

	ticker := q.clock.NewTicker(q.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.done:
			return
		case <-ticker.Chan():
			q.Flush()
		}
	}
}
