// Package stream turns a token producer into the ordered event sequence
// delivered to a client: chunks gated on liveness, then side-channel
// events, then exactly one terminal event.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/southdmw/zeus-ops-workorder/internal/domain"
)

// Source yields text chunks until io.EOF or an error.
type Source interface {
	Recv() (string, error)
	Close() error
}

// OpenFunc starts the token producer.
type OpenFunc func(ctx context.Context) (Source, error)

// Gate reports whether the turn may keep emitting chunks.
type Gate interface {
	Live() bool
	Stopped() <-chan struct{}
}

// Outcome is how the primary sequence ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeStopped   Outcome = "stopped"
	OutcomeFailed    Outcome = "failed"
)

// MetadataFunc builds the Metadata event body once the outcome is known.
// Returning nil omits the event.
type MetadataFunc func(Outcome) json.RawMessage

// Options configures a Multiplexer.
type Options struct {
	Open     OpenFunc
	Gate     Gate
	Sideband *Sideband
	Metadata MetadataFunc
	// Timeout bounds the producer once it is detached from the caller.
	Timeout time.Duration
}

const (
	phasePrimary = iota
	phaseTrailer
)

// Multiplexer merges the primary chunk sequence with side-channel events.
// Next must be called from a single goroutine.
type Multiplexer struct {
	opts Options
	q    *queue

	phase   int
	pending []domain.OutputEvent

	mu      sync.Mutex
	outcome Outcome
	err     error
}

// New starts the producer on its own goroutine and returns the multiplexer.
// The producer runs on a context detached from ctx cancellation so a stop
// or a gone client never interrupts an in-flight call; it ends at its next
// chunk, on EOF or when Timeout elapses.
func New(ctx context.Context, opts Options) *Multiplexer {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	m := &Multiplexer{opts: opts, q: newQueue()}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opts.Timeout)
	go func() {
		defer cancel()
		m.pump(pctx)
	}()
	return m
}

func (m *Multiplexer) pump(ctx context.Context) {
	src, err := m.opts.Open(ctx)
	if err != nil {
		m.q.finish(err, false)
		return
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			log.Printf("WARN: failed to close token producer: %v", cerr)
		}
	}()

	for {
		text, err := src.Recv()
		if errors.Is(err, io.EOF) {
			m.q.finish(nil, false)
			return
		}
		if err != nil {
			m.q.finish(err, false)
			return
		}
		// The first chunk pulled after the turn stopped is dropped.
		if !m.opts.Gate.Live() {
			m.q.finish(nil, true)
			return
		}
		m.q.push(text)
	}
}

// Next returns the next event. It returns io.EOF after the Terminal event
// and ctx.Err() if ctx is done while waiting.
func (m *Multiplexer) Next(ctx context.Context) (domain.OutputEvent, error) {
	for m.phase == phasePrimary {
		text, state := m.q.pop()
		switch state {
		case popItem:
			if !m.opts.Gate.Live() {
				m.endPrimary(OutcomeStopped, nil)
				continue
			}
			return domain.ChunkEvent(text), nil
		case popDone:
			tripped, err := m.q.result()
			switch {
			case tripped:
				m.endPrimary(OutcomeStopped, nil)
			case err != nil:
				m.endPrimary(OutcomeFailed, err)
			default:
				m.endPrimary(OutcomeCompleted, nil)
			}
			continue
		}

		if !m.opts.Gate.Live() {
			m.endPrimary(OutcomeStopped, nil)
			continue
		}
		select {
		case <-m.q.notify:
		case <-m.opts.Gate.Stopped():
		case <-ctx.Done():
			return domain.OutputEvent{}, ctx.Err()
		}
	}

	if len(m.pending) == 0 {
		return domain.OutputEvent{}, io.EOF
	}
	ev := m.pending[0]
	m.pending = m.pending[1:]
	return ev, nil
}

func (m *Multiplexer) endPrimary(outcome Outcome, err error) {
	m.mu.Lock()
	m.outcome = outcome
	m.err = err
	m.mu.Unlock()

	m.phase = phaseTrailer
	if m.opts.Metadata != nil {
		if data := m.opts.Metadata(outcome); data != nil {
			m.pending = append(m.pending, domain.MetadataEvent(data))
		}
	}
	if m.opts.Sideband != nil {
		if data, ok := m.opts.Sideband.ToolResult(); ok {
			m.pending = append(m.pending, domain.ToolResultEvent(data))
		}
	}
	m.pending = append(m.pending, domain.TerminalEvent())
}

// Outcome reports how the primary sequence ended.
// It is empty while chunks are still flowing.
func (m *Multiplexer) Outcome() (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcome, m.err
}
