// ABOUTME: Fan-out of written PCM to tap listeners
// ABOUTME: Slow listeners lose buffers instead of holding up the pipe writer
package monitor

import (
	"sync"

	"github.com/virtual-audio-driver/micfeed/internal/metrics"
)

// listenerQueue is the number of buffers a listener may fall behind.
// Default script steps are at most one second of audio.
const listenerQueue = 16

// Broadcaster fans out PCM buffers from the driver to N listeners
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
}

// Listener receives PCM buffers from the broadcaster
type Listener struct {
	C    chan []byte
	done chan struct{}
	once sync.Once
}

// Done is closed when the listener is unsubscribed
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// NewBroadcaster creates a new broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		listeners: make(map[*Listener]struct{}),
	}
}

// Subscribe registers a new listener
func (b *Broadcaster) Subscribe() *Listener {
	l := &Listener{
		C:    make(chan []byte, listenerQueue),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	n := len(b.listeners)
	b.mu.Unlock()
	metrics.TapListeners.Set(float64(n))
	return l
}

// Unsubscribe removes a listener and signals it to stop. Safe to call twice.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	delete(b.listeners, l)
	n := len(b.listeners)
	b.mu.Unlock()
	metrics.TapListeners.Set(float64(n))
	l.once.Do(func() { close(l.done) })
}

// UnsubscribeAll removes every listener
func (b *Broadcaster) UnsubscribeAll() {
	b.mu.Lock()
	listeners := b.listeners
	b.listeners = make(map[*Listener]struct{})
	b.mu.Unlock()
	metrics.TapListeners.Set(0)
	for l := range listeners {
		l.once.Do(func() { close(l.done) })
	}
}

// ListenerCount returns the number of active listeners
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Publish hands buf to every listener without blocking and returns how
// many listeners dropped it
func (b *Broadcaster) Publish(buf []byte) int {
	dropped := 0
	b.mu.RLock()
	for l := range b.listeners {
		select {
		case l.C <- buf:
		default:
			dropped++
		}
	}
	b.mu.RUnlock()
	if dropped > 0 {
		metrics.TapDroppedTotal.Add(float64(dropped))
	}
	return dropped
}
