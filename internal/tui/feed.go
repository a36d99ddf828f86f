package tui

import (
	"sync"

	"morph/internal/queue"
)

const feedBuffer = 64

// Feed turns processor callbacks into a channel the model can read. Sends
// never block: when the buffer is full the oldest event is dropped, so the
// newest run state always reaches the model. The model re-reads the queue on
// every event, so a dropped event loses nothing. After stop, events are
// discarded.
func Feed(p *queue.Processor) (events <-chan queue.Event, stop func()) {
	ch := make(chan queue.Event, feedBuffer)
	done := make(chan struct{})

	unsubscribe := p.Subscribe(func(ev queue.Event) {
		for {
			select {
			case <-done:
				return
			case ch <- ev:
				return
			default:
			}
			select {
			case <-ch:
			default:
			}
		}
	})

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			close(done)
			unsubscribe()
		})
	}
}
