package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/kafka"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector buffers events in a channel and publishes them in batches, either
// when batchSize events are pending or every flushInterval. Tracking never
// blocks the request path: when the buffer is full the event is dropped.
type Collector struct {
	publisher     Publisher
	eventCh       chan kafka.Event
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	stop          chan struct{}
	stopOnce      sync.Once
	done          chan struct{}
}

func NewCollector(publisher Publisher, bufferSize, batchSize int, flushInterval time.Duration) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	return &Collector{
		publisher:     publisher,
		eventCh:       make(chan kafka.Event, bufferSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "analytics-collector"),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start launches the publish loop. It ends when ctx is cancelled or Close is
// called, flushing whatever is still buffered.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		batch := make([]kafka.Event, 0, c.batchSize)
		for {
			select {
			case event := <-c.eventCh:
				batch = append(batch, event)
				if len(batch) >= c.batchSize {
					batch = c.flush(ctx, batch)
				}
			case <-ticker.C:
				batch = c.flush(ctx, batch)
			case <-ctx.Done():
				c.drain(batch)
				return
			case <-c.stop:
				c.drain(batch)
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

// TrackPlan enqueues a plan event keyed by student.
func (c *Collector) TrackPlan(event PlanEvent) {
	event.Type = EventPlan
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	c.track(kafka.Event{Key: event.StudentID, Value: event})
}

// TrackRecord enqueues a record-saved event keyed by student.
func (c *Collector) TrackRecord(event RecordEvent) {
	event.Type = EventRecordSaved
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	c.track(kafka.Event{Key: event.StudentID, Value: event})
}

func (c *Collector) track(event kafka.Event) {
	select {
	case <-c.stop:
		return
	default:
	}
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops the loop and waits for the final flush. Safe to call more
// than once.
func (c *Collector) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

func (c *Collector) flush(ctx context.Context, batch []kafka.Event) []kafka.Event {
	if len(batch) == 0 {
		return batch
	}
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("failed to publish analytics batch", "events", len(batch), "error", err)
	}
	return batch[:0]
}

func (c *Collector) drain(batch []kafka.Event) {
	for {
		select {
		case event := <-c.eventCh:
			batch = append(batch, event)
		default:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			c.flush(ctx, batch)
			return
		}
	}
}
