package session

import (
	"sync"
	"time"

	"github.com/eapache/queue"

	"github.com/mildmongrel/thicket/internal/protocol"
)

// Mailbox is the unbounded FIFO between a session's receive pump and its
// action loop. the pump never blocks on it.
type Mailbox struct {
	mu    sync.Mutex
	queue *queue.Queue
	ready chan struct{}
}

func NewMailbox() *Mailbox {
	return &Mailbox{
		queue: queue.New(),
		ready: make(chan struct{}, 1),
	}
}

func (mb *Mailbox) Push(msg protocol.ServerMsg) {
	mb.mu.Lock()
	mb.queue.Add(msg)
	mb.mu.Unlock()

	select {
	case mb.ready <- struct{}{}:
	default:
	}
}

// Pop returns the oldest message, waiting up to timeout for one to arrive.
func (mb *Mailbox) Pop(timeout time.Duration) (protocol.ServerMsg, bool) {
	var timer *time.Timer

	for {
		mb.mu.Lock()
		if mb.queue.Length() > 0 {
			msg := mb.queue.Remove().(protocol.ServerMsg)
			mb.mu.Unlock()
			if timer != nil {
				timer.Stop()
			}
			return msg, true
		}
		mb.mu.Unlock()

		if timer == nil {
			timer = time.NewTimer(timeout)
		}

		select {
		case <-mb.ready:
		case <-timer.C:
			return nil, false
		}
	}
}

func (mb *Mailbox) Len() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.queue.Length()
}
