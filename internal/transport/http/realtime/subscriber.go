package realtime

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/Additional-Code/servio/internal/notify"
)

// sendBuffer is the number of events a slow connection may lag behind
// before the hub drops it.
const sendBuffer = 256

var (
	errClosed = errors.New("realtime: subscriber closed")
	errSlow   = errors.New("realtime: subscriber buffer full")
)

// wsSubscriber adapts one websocket connection to notify.Subscriber. The
// hub pushes into send; the write pump drains it.
type wsSubscriber struct {
	send   chan notify.Event
	done   chan struct{}
	once   sync.Once
	closed atomic.Bool
}

func newSubscriber() *wsSubscriber {
	return &wsSubscriber{
		send: make(chan notify.Event, sendBuffer),
		done: make(chan struct{}),
	}
}

// Send queues ev without blocking.
func (s *wsSubscriber) Send(ev notify.Event) error {
	if s.closed.Load() {
		return errClosed
	}
	select {
	case s.send <- ev:
		return nil
	default:
		return errSlow
	}
}

// Close signals the pumps to stop. It is safe to call more than once.
func (s *wsSubscriber) Close() {
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.done)
	})
}

// Closed reports whether Close was called.
func (s *wsSubscriber) Closed() bool {
	return s.closed.Load()
}
