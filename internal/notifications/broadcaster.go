package notifications

import (
	"sync"
)

const defaultRecentEvents = 200

// Broadcaster delivers events to live subscribers and keeps the most recent
// ones for late readers.
type Broadcaster struct {
	mu     sync.Mutex
	seq    int64
	ring   []StatusEvent
	next   int
	filled bool
	subs   map[int]chan StatusEvent
	subSeq int
}

// NewBroadcaster keeps up to size recent events. size <= 0 uses a default.
func NewBroadcaster(size int) *Broadcaster {
	if size <= 0 {
		size = defaultRecentEvents
	}
	return &Broadcaster{
		ring: make([]StatusEvent, size),
		subs: make(map[int]chan StatusEvent),
	}
}

// Publish stamps ev with the next sequence number, records it, and offers it
// to every subscriber. Slow subscribers miss events rather than block.
func (b *Broadcaster) Publish(ev StatusEvent) StatusEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	ev.Seq = b.seq
	b.ring[b.next] = ev
	b.next = (b.next + 1) % len(b.ring)
	if b.next == 0 {
		b.filled = true
	}

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return ev
}

// Subscribe registers a listener. The returned cancel func closes the channel.
func (b *Broadcaster) Subscribe(buffer int) (<-chan StatusEvent, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan StatusEvent, buffer)

	b.mu.Lock()
	b.subSeq++
	id := b.subSeq
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Since returns recorded events with a sequence number above seq, oldest first.
func (b *Broadcaster) Since(seq int64) []StatusEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	var ordered []StatusEvent
	if b.filled {
		ordered = append(ordered, b.ring[b.next:]...)
	}
	ordered = append(ordered, b.ring[:b.next]...)

	out := make([]StatusEvent, 0, len(ordered))
	for _, ev := range ordered {
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}

// Recent returns up to n of the newest events, oldest first.
func (b *Broadcaster) Recent(n int) []StatusEvent {
	all := b.Since(0)
	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return all
}
