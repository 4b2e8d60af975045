package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"afropedia/api/internal/metrics"
)

const defaultTimeout = 5 * time.Second

// Fanout delivers events to every sink in the background. Delivery failures
// are logged and counted, never returned.
type Fanout struct {
	sinks   []Sink
	log     *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewFanout(log *zap.Logger, timeout time.Duration, sinks ...Sink) *Fanout {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Fanout{sinks: sinks, log: log, timeout: timeout}
}

func (f *Fanout) Sinks() []string {
	names := make([]string, 0, len(f.sinks))
	for _, sink := range f.sinks {
		names = append(names, sink.Name())
	}
	return names
}

// Publish hands the batch to each sink on its own goroutine, preserving order
// within a sink.
func (f *Fanout) Publish(batch ...Event) {
	if f == nil || len(batch) == 0 {
		return
	}
	for _, sink := range f.sinks {
		f.wg.Add(1)
		go func(sink Sink) {
			defer f.wg.Done()
			for _, event := range batch {
				f.deliver(sink, event)
			}
		}(sink)
	}
}

func (f *Fanout) deliver(sink Sink, event Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.EventsPublished.WithLabelValues(sink.Name(), "panic").Inc()
			f.log.Error("event sink panicked",
				zap.String("sink", sink.Name()),
				zap.String("event_type", string(event.Type)),
				zap.Any("panic", r),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	if err := sink.Publish(ctx, event); err != nil {
		metrics.EventsPublished.WithLabelValues(sink.Name(), "error").Inc()
		f.log.Warn("event delivery failed",
			zap.String("sink", sink.Name()),
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
		return
	}
	metrics.EventsPublished.WithLabelValues(sink.Name(), "ok").Inc()
}

// Wait blocks until every in-flight delivery has finished.
func (f *Fanout) Wait() {
	if f == nil {
		return
	}
	f.wg.Wait()
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Name() string { return "recorder" }

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) Types() []Type {
	events := r.Events()
	types := make([]Type, 0, len(events))
	for _, event := range events {
		types = append(types, event.Type)
	}
	return types
}
