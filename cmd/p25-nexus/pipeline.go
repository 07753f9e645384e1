package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/dbehnke/p25-nexus/pkg/bandplan"
	"github.com/dbehnke/p25-nexus/pkg/capture"
	"github.com/dbehnke/p25-nexus/pkg/logger"
	"github.com/dbehnke/p25-nexus/pkg/p25"
)

// pipeline routes capture records to one processor per channel. Each
// channel is decoded on its own goroutine; all channels share one band plan.
type pipeline struct {
	plan      *bandplan.Plan
	queueSize int
	nextID    func() string
	listeners []p25.Listener
	log       *logger.Logger

	// onLineError is called for every malformed capture line
	onLineError func(capture string)

	mu       sync.RWMutex
	channels map[string]*channelWorker
	wg       sync.WaitGroup
}

type channelWorker struct {
	proc  *p25.Processor
	queue chan capture.Record
}

func newPipeline(plan *bandplan.Plan, queueSize int, nextID func() string, log *logger.Logger) *pipeline {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &pipeline{
		plan:      plan,
		queueSize: queueSize,
		nextID:    nextID,
		log:       log.WithComponent("pipeline"),
		channels:  make(map[string]*channelWorker),
	}
}

// AddListener registers l on channels started after the call
func (p *pipeline) AddListener(l p25.Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, l)
}

// worker returns the channel's worker, starting it on first use
func (p *pipeline) worker(name string) *channelWorker {
	p.mu.RLock()
	w, ok := p.channels[name]
	p.mu.RUnlock()
	if ok {
		return w
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := p.channels[name]; ok {
		return w
	}
	proc := p25.NewProcessor(name, p.plan, p.nextID, p.log)
	for _, l := range p.listeners {
		proc.AddListener(l)
	}
	w = &channelWorker{proc: proc, queue: make(chan capture.Record, p.queueSize)}
	p.channels[name] = w

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.decode(w)
	}()
	p.log.Info("Decoding channel", logger.String("channel", name))
	return w
}

func (p *pipeline) decode(w *channelWorker) {
	for rec := range w.queue {
		switch rec.Kind {
		case capture.KindFrame:
			w.proc.ProcessFrame(rec.Bits, rec.NIDCRC)
		case capture.KindBlock:
			if err := w.proc.ProcessDataBlock(rec.Bits); err != nil {
				p.log.Debug("Data block not used",
					logger.String("channel", rec.Channel),
					logger.Error(err))
			}
		}
	}
}

// Feed reads a capture to the end, queueing each record on its channel.
// Malformed lines are logged and skipped.
func (p *pipeline) Feed(ctx context.Context, name string, r *capture.Reader) error {
	var records int
	for {
		rec, err := r.Next()
		if err == io.EOF {
			p.log.Info("Capture finished",
				logger.String("capture", name),
				logger.Int("records", records))
			return nil
		}
		if err != nil {
			var lineErr *capture.LineError
			if !errors.As(err, &lineErr) {
				return fmt.Errorf("capture %s: %w", name, err)
			}
			p.log.Warn("Skipping malformed capture line",
				logger.String("capture", name),
				logger.Error(err))
			if p.onLineError != nil {
				p.onLineError(name)
			}
			continue
		}

		select {
		case p.worker(rec.Channel).queue <- rec:
			records++
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops the channel workers once their queues drain. No Feed may be
// running or follow; Stats stays available.
func (p *pipeline) Close() {
	p.mu.Lock()
	for _, w := range p.channels {
		close(w.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Stats returns the processor counters of every channel
func (p *pipeline) Stats() map[string]p25.ProcessorStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]p25.ProcessorStats, len(p.channels))
	for name, w := range p.channels {
		out[name] = w.proc.Stats()
	}
	return out
}

// Channels returns the names of the channels seen so far
func (p *pipeline) Channels() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.channels))
	for name := range p.channels {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// sink hands events to a slow consumer on its own goroutine. Events are
// dropped when the buffer is full.
type sink struct {
	name    string
	events  chan p25.Event
	handle  func(p25.Event) error
	onError func(name string)
	log     *logger.Logger
	done    chan struct{}
}

func newSink(name string, size int, handle func(p25.Event) error, onError func(string), log *logger.Logger) *sink {
	return &sink{
		name:    name,
		events:  make(chan p25.Event, size),
		handle:  handle,
		onError: onError,
		log:     log.WithComponent(name),
		done:    make(chan struct{}),
	}
}

// Observe is the processor listener
func (s *sink) Observe(ev p25.Event) {
	select {
	case s.events <- ev:
	default:
		s.log.Warn("Sink buffer full, dropping event", logger.String("event_id", ev.ID))
		s.failed()
	}
}

// Run delivers events until Close
func (s *sink) Run() {
	defer close(s.done)
	for ev := range s.events {
		if err := s.handle(ev); err != nil {
			s.log.Debug("Failed to deliver event",
				logger.String("event_id", ev.ID),
				logger.Error(err))
			s.failed()
		}
	}
}

// Close delivers what is buffered and waits for Run to return
func (s *sink) Close() {
	close(s.events)
	<-s.done
}

func (s *sink) failed() {
	if s.onError != nil {
		s.onError(s.name)
	}
}
