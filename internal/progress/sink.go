package progress

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Sink consumes batches of progress events. Implementations must honor ctx
// deadlines and tolerate repeated Close calls.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events.
type Emitter interface {
	Emit(evt Event)
}

// Dispatcher hands each valid event to every sink as soon as it is emitted.
// A scrape run has a single producer that emits a few events per page, so
// events are delivered synchronously and in order.
type Dispatcher struct {
	mu     sync.Mutex
	sinks  []Sink
	logger *zap.Logger
	closed bool
}

// NewDispatcher wires sinks behind a Dispatcher.
func NewDispatcher(logger *zap.Logger, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{sinks: append([]Sink(nil), sinks...), logger: logger}
}

// Emit validates evt and forwards it to the sinks. Invalid events and events
// emitted after Close are discarded.
func (d *Dispatcher) Emit(evt Event) {
	if d == nil {
		return
	}
	if err := evt.Validate(); err != nil {
		d.logger.Debug("discarding invalid progress event", zap.Error(err))
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	batch := []Event{evt}
	for _, sink := range d.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Consume(context.Background(), batch); err != nil {
			d.logger.Warn("progress sink consume failed", zap.Error(err))
		}
	}
}

// Close closes every sink once.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	for _, sink := range d.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Close(ctx); err != nil {
			d.logger.Warn("progress sink close failed", zap.Error(err))
		}
	}
	return nil
}

// Nop discards events.
type Nop struct{}

// Emit implements Emitter.
func (Nop) Emit(Event) {}
