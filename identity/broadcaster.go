package identity

import "sync"

// Broadcaster implements the observer half of Provider: it holds the latest
// snapshot and fans out change notifications. Providers embed it and feed it
// snapshots via Publish.
type Broadcaster struct {
	mu      sync.Mutex
	current Snapshot
	nextID  int
	subs    map[int]func(Snapshot)
}

func NewBroadcaster(initial Snapshot) *Broadcaster {
	return &Broadcaster{
		current: initial,
		subs:    make(map[int]func(Snapshot)),
	}
}

func (b *Broadcaster) Current() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (b *Broadcaster) OnChange(fn func(Snapshot)) (cancel func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish records a new snapshot and notifies observers. Snapshots equal to
// the current tuple are dropped so duplicate provider events do not fan out.
// Observers run synchronously, outside the lock.
func (b *Broadcaster) Publish(snap Snapshot) {
	b.mu.Lock()
	if b.current.Equal(snap) {
		b.mu.Unlock()
		return
	}
	b.current = snap
	observers := make([]func(Snapshot), 0, len(b.subs))
	for _, fn := range b.subs {
		observers = append(observers, fn)
	}
	b.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
}
