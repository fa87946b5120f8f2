package trigger

import (
	"context"
	"sync"
	"time"
)

type ActionType string

const (
	Begin  ActionType = "begin"
	Finish ActionType = "finish"
)

// Action is handed to the capture subsystem. A begin action carries a
// context that is cancelled if the activation resolves as too short.
type Action struct {
	Type ActionType
	Key  string
	Time time.Time
	ctx  context.Context
}

// Context is done when the capture started by this begin action has been
// cancelled. Finish actions return a context that is never done.
func (a Action) Context() context.Context {
	if a.ctx == nil {
		return context.Background()
	}
	return a.ctx
}

// Capture is the handle to an outstanding capture.
type Capture interface {
	Cancel()
}

// Sink receives actions. Both methods must return without blocking.
type Sink interface {
	Begin(a Action) Capture
	Finish(a Action)
}

type captureFunc context.CancelFunc

func (c captureFunc) Cancel() { c() }

// ChanSink queues actions without bounds and delivers them in order on a
// channel, so hook callbacks never wait on the consumer.
type ChanSink struct {
	mu     sync.Mutex
	queue  []Action
	wake   chan struct{}
	out    chan Action
	done   chan struct{}
	closed bool
}

func NewChanSink() *ChanSink {
	s := &ChanSink{
		wake: make(chan struct{}, 1),
		out:  make(chan Action),
		done: make(chan struct{}),
	}
	go s.pump()
	return s
}

// Actions returns the delivery channel. It is closed after Close once the
// queue has drained.
func (s *ChanSink) Actions() <-chan Action {
	return s.out
}

func (s *ChanSink) Begin(a Action) Capture {
	ctx, cancel := context.WithCancel(context.Background())
	a.Type = Begin
	a.ctx = ctx
	s.push(a)
	return captureFunc(cancel)
}

func (s *ChanSink) Finish(a Action) {
	a.Type = Finish
	s.push(a)
}

func (s *ChanSink) push(a Action) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, a)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Close stops accepting actions. Already queued actions are still delivered.
func (s *ChanSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	close(s.done)
}

func (s *ChanSink) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		closed := s.closed
		s.mu.Unlock()

		for _, a := range batch {
			s.out <- a
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		select {
		case <-s.wake:
		case <-s.done:
		}
	}
}
