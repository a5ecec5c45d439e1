// Package progress delivers best-effort status strings from the update
// pipeline to optional observers. Nothing here is required for
// correctness: the pipeline never blocks on an observer and tolerates
// every observer being absent.
package progress

import (
	"log"
	"sync"
	"sync/atomic"
)

// Notifier receives status strings emitted alongside every pipeline stage.
type Notifier interface {
	Notify(status string)
}

// Func adapts a plain function to the Notifier interface.
type Func func(string)

func (f Func) Notify(status string) { f(status) }

// Discard ignores every notification.
var Discard Notifier = Func(func(string) {})

// Fanout forwards each status to any number of subscribed observers.
// Delivery is non-blocking per observer: a slow consumer loses messages
// instead of stalling the pipeline. Observers are injected explicitly so
// independent runs and tests never interfere through shared global state.
type Fanout struct {
	mu        sync.Mutex
	observers []chan string
	drops     uint64
}

// NewFanout returns an empty Fanout.
func NewFanout() *Fanout {
	return &Fanout{}
}

// Subscribe registers a new observer channel with the given buffer size.
func (f *Fanout) Subscribe(buffer int) <-chan string {
	ch := make(chan string, buffer)

	f.mu.Lock()
	f.observers = append(f.observers, ch)
	f.mu.Unlock()

	return ch
}

// Notify sends status to every observer that has room for it.
func (f *Fanout) Notify(status string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.observers {
		select {
		case ch <- status:
		default:
			drops := atomic.AddUint64(&f.drops, 1)
			if drops%100 == 1 {
				log.Printf("[progress] Observer channel full, total drops: %d", drops)
			}
		}
	}
}

// Close closes all observer channels. Notify must not be called after Close.
func (f *Fanout) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.observers {
		close(ch)
	}
	f.observers = nil
}

// Drops returns how many messages were lost to full observer channels.
func (f *Fanout) Drops() uint64 {
	return atomic.LoadUint64(&f.drops)
}
