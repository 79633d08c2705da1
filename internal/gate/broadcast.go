package gate

import (
	"sync"

	"github.com/kozaktomas/facegate/internal/constants"
)

// broadcaster fans events out to buffered listener channels without blocking.
type broadcaster struct {
	mu        sync.RWMutex
	listeners []chan Event
}

func (b *broadcaster) add() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

func (b *broadcaster) remove(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(listener)
			return
		}
	}
}

func (b *broadcaster) send(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- ev:
		default:
			// Listener buffer full, skip.
		}
	}
}
