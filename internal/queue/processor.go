// Package queue runs conversion jobs one at a time on a background
// goroutine, with pause/resume that never loses finished work.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"morph/internal/converter"
)

// Converter performs a single conversion. *converter.Engine satisfies it.
type Converter interface {
	ConvertToFile(ctx context.Context, sourcePath, destinationPath string, opts converter.Options) error
}

// Recorder is told about every successful conversion. Implementations must
// return quickly; the worker calls it inline.
type Recorder interface {
	RecordConversion()
}

// Option configures a Processor.
type Option func(*Processor)

// WithRecorder sets the statistics collaborator.
func WithRecorder(r Recorder) Option {
	return func(p *Processor) {
		p.recorder = r
	}
}

// WithLogger sets the logger used for run and item transitions.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// Processor owns an ordered queue of items and drains it sequentially.
type Processor struct {
	conv     Converter
	recorder Recorder
	logger   *slog.Logger

	mu      sync.Mutex
	items   []*Item
	running bool
	run     uint64
	cancel  context.CancelFunc
	done    chan struct{} // closed when the latest drain exits

	subMu   sync.RWMutex
	subs    []subscriber
	nextSub int
}

type subscriber struct {
	id int
	fn func(Event)
}

// NewProcessor returns an idle Processor with an empty queue.
func NewProcessor(conv Converter, opts ...Option) *Processor {
	p := &Processor{
		conv:   conv,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Add appends items in order. It never starts processing.
func (p *Processor) Add(items ...*Item) {
	if len(items) == 0 {
		return
	}

	p.mu.Lock()
	p.items = append(p.items, items...)
	p.mu.Unlock()

	for _, item := range items {
		snap := item.Snapshot()
		p.publish(Event{Kind: EventItemAdded, Item: &snap})
	}
}

// Start begins draining Pending items on a background goroutine and returns
// immediately. It is a no-op while already running. The run covers the queue
// as it stands when Start is called. If an earlier run is still finishing its
// in-flight item, the new run waits for it first.
func (p *Processor) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.running = true
	p.run++
	run := p.run
	p.cancel = cancel
	prev := p.done
	done := make(chan struct{})
	p.done = done
	snapshot := make([]*Item, len(p.items))
	copy(snapshot, p.items)
	p.mu.Unlock()

	p.logger.Info("Queue started", "run", run)
	p.publish(Event{Kind: EventRunState, Running: true})

	go p.drain(ctx, run, snapshot, prev, done)
}

// Pause stops the run before its next item and marks the processor idle at
// once. An item already in progress still runs to completion.
func (p *Processor) Pause() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.cancel()
	p.cancel = nil
	p.running = false
	run := p.run
	p.mu.Unlock()

	p.logger.Info("Queue paused", "run", run)
	p.publish(Event{Kind: EventRunState, Running: false})
}

// Clear pauses and empties the queue. Safe to call at any time.
func (p *Processor) Clear() {
	p.Pause()

	p.mu.Lock()
	n := len(p.items)
	p.items = nil
	p.mu.Unlock()

	if n > 0 {
		p.logger.Info("Queue cleared", "items", n)
		p.publish(Event{Kind: EventCleared})
	}
}

// Items returns a snapshot of every item in queue order.
func (p *Processor) Items() []Snapshot {
	p.mu.Lock()
	items := make([]*Item, len(p.items))
	copy(items, p.items)
	p.mu.Unlock()

	out := make([]Snapshot, len(items))
	for i, item := range items {
		out[i] = item.Snapshot()
	}
	return out
}

func (p *Processor) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

func (p *Processor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Wait blocks until the most recent run, and any run it waited on, has
// exited. It returns at once if nothing was ever started.
func (p *Processor) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Subscribe registers fn for every event and returns a function that removes
// it. fn runs on the goroutine that caused the event, which for item updates
// is the worker; it must not block for long and must not call Subscribe.
func (p *Processor) Subscribe(fn func(Event)) (unsubscribe func()) {
	p.subMu.Lock()
	p.nextSub++
	id := p.nextSub
	p.subs = append(p.subs, subscriber{id: id, fn: fn})
	p.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.subMu.Lock()
			defer p.subMu.Unlock()
			for i, s := range p.subs {
				if s.id == id {
					p.subs = append(p.subs[:i:i], p.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (p *Processor) publish(ev Event) {
	p.subMu.RLock()
	subs := make([]subscriber, len(p.subs))
	copy(subs, p.subs)
	p.subMu.RUnlock()

	for _, s := range subs {
		s.fn(ev)
	}
}

// drain works through the queue as it stood when the run began. Items added
// later wait for the next Start.
func (p *Processor) drain(ctx context.Context, run uint64, snapshot []*Item, prev <-chan struct{}, done chan struct{}) {
	defer close(done)

	if prev != nil {
		<-prev
	}

	for _, item := range snapshot {
		if ctx.Err() != nil {
			p.logger.Debug("Run cancelled before next item", "run", run, "next", item.SourcePath)
			break
		}
		if item.Status() != StatusPending {
			continue
		}
		p.process(ctx, item)
	}

	p.finish(run)
}

func (p *Processor) process(ctx context.Context, item *Item) {
	p.transition(item, StatusInProgress, "")

	// Pause must not interrupt an item that has started.
	err := p.convert(context.WithoutCancel(ctx), item)

	switch {
	case err == nil:
		p.transition(item, StatusCompleted, "")
		p.recordConversion()
	case errors.Is(err, converter.ErrCancelled), errors.Is(err, context.Canceled):
		p.transition(item, StatusPending, "")
	default:
		p.logger.Warn("Conversion failed",
			"item_id", item.ID,
			"source", item.SourcePath,
			"destination", item.DestinationPath,
			"error", err,
		)
		p.transition(item, StatusFailed, err.Error())
	}
}

func (p *Processor) convert(ctx context.Context, item *Item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("conversion panicked: %v", r)
		}
	}()
	return p.conv.ConvertToFile(ctx, item.SourcePath, item.DestinationPath, item.Options)
}

func (p *Processor) transition(item *Item, status Status, message string) {
	item.setStatus(status, message)
	p.logger.Debug("Item status changed",
		"item_id", item.ID,
		"source", item.SourcePath,
		"status", string(status),
	)

	snap := item.Snapshot()
	p.publish(Event{Kind: EventItemUpdated, Item: &snap})
}

func (p *Processor) recordConversion() {
	if p.recorder == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("Statistics recorder panicked", "panic", r)
		}
	}()
	p.recorder.RecordConversion()
}

// finish returns the processor to idle unless the run was paused or a newer
// run has taken over.
func (p *Processor) finish(run uint64) {
	p.mu.Lock()
	if !p.running || p.run != run {
		p.mu.Unlock()
		return
	}
	p.running = false
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.mu.Unlock()

	p.logger.Info("Queue drained", "run", run)
	p.publish(Event{Kind: EventRunState, Running: false})
}
