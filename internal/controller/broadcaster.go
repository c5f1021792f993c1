package controller

import "sync"

// Subscription delivers every published snapshot, in order, starting with
// the value current at subscription time. C is closed right after Close, or
// once every queued snapshot has been received when the controller shuts down.
type Subscription struct {
	C <-chan Snapshot

	b   *broadcaster
	sub *subscriber
}

func (s *Subscription) Close() {
	s.b.remove(s.sub)
}

type broadcaster struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[*subscriber]struct{})}
}

func (b *broadcaster) add(initial Snapshot) *Subscription {
	sub := &subscriber{
		queue: []Snapshot{initial},
		wake:  make(chan struct{}, 1),
		out:   make(chan Snapshot),
		done:  make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go sub.run()
	return &Subscription{C: sub.out, b: b, sub: sub}
}

func (b *broadcaster) publish(snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		sub.push(snap)
	}
}

func (b *broadcaster) remove(sub *subscriber) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
	sub.stop()
}

func (b *broadcaster) closeAll() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[*subscriber]struct{})
	b.mu.Unlock()

	for sub := range subs {
		sub.finish()
	}
}

func (b *broadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// subscriber buffers without bound so a slow reader never blocks publishers.
type subscriber struct {
	mu      sync.Mutex
	queue   []Snapshot
	closing bool
	wake    chan struct{}
	out     chan Snapshot
	done    chan struct{}
	once    sync.Once
}

func (s *subscriber) push(snap Snapshot) {
	s.mu.Lock()
	s.queue = append(s.queue, snap)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// stop ends delivery at once and discards whatever is still queued.
func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// finish closes the channel once the reader has received everything queued.
func (s *subscriber) finish() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			closing := s.closing
			s.mu.Unlock()
			if closing {
				return
			}
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		next := s.queue[0]
		s.queue[0] = Snapshot{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- next:
		case <-s.done:
			return
		}
	}
}
