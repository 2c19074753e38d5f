package analytics

import (
	"context"
	"log/slog"
	"sync"
)

// Recorder consumes search events.
type Recorder interface {
	Record(event SearchEvent)
}

// Collector hands events to a Recorder on its own goroutine so tracking
// never blocks a request. Events are dropped when the buffer is full.
type Collector struct {
	sink      Recorder
	eventCh   chan SearchEvent
	logger    *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

func NewCollector(sink Recorder, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		sink:    sink,
		eventCh: make(chan SearchEvent, bufferSize),
		logger:  slog.Default().With("component", "analytics-collector"),
		done:    make(chan struct{}),
	}
}

// Start delivers events until ctx ends or Close is called. Events still
// buffered at that point are delivered before the goroutine exits.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.sink.Record(event)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

func (c *Collector) Track(event SearchEvent) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped, buffer full")
	}
}

// Close stops accepting events and waits for the buffered ones to be
// recorded. Track must not be called after Close.
func (c *Collector) Close() {
	c.closeOnce.Do(func() { close(c.eventCh) })
	<-c.done
}

func (c *Collector) drainRemaining() {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			c.sink.Record(event)
		default:
			return
		}
	}
}
