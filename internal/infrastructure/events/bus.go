package events

import (
	"context"
	"sync"
	"sync/atomic"

	"classroom-roster/internal/domain/roster"
	interfaces "classroom-roster/internal/interfaces/infrastructure"
	"classroom-roster/pkg/logger"
)

// Bus fans change events out to subscribers keyed by entity kind.
// Publish never blocks: events are dropped when the bus or a subscriber
// buffer is full.
type Bus struct {
	queue     chan roster.ChangeEvent
	subBuffer int

	mu     sync.RWMutex
	subs   map[roster.EntityKind]map[int]chan roster.ChangeEvent
	nextID int

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	stopped bool
	runMu   sync.Mutex

	dropped atomic.Int64
}

func NewBus(bufferSize int) *Bus {
	if bufferSize < 1 {
		bufferSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Bus{
		queue:     make(chan roster.ChangeEvent, bufferSize),
		subBuffer: bufferSize,
		subs:      make(map[roster.EntityKind]map[int]chan roster.ChangeEvent),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the dispatcher. Calling it twice is a no-op.
func (b *Bus) Start() {
	b.runMu.Lock()
	defer b.runMu.Unlock()

	if b.started || b.stopped {
		return
	}

	b.wg.Add(1)
	go b.dispatch()
	b.started = true
	logger.Debug("Event bus started")
}

// Stop delivers what is still queued, then closes every subscription.
func (b *Bus) Stop() {
	b.runMu.Lock()
	defer b.runMu.Unlock()

	if b.stopped {
		return
	}
	b.stopped = true
	b.cancel()
	b.wg.Wait()

	b.mu.Lock()
	for kind, subs := range b.subs {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(b.subs, kind)
	}
	b.mu.Unlock()
	logger.Debug("Event bus stopped")
}

func (b *Bus) Publish(event roster.ChangeEvent) {
	select {
	case b.queue <- event:
	default:
		b.dropped.Add(1)
		logger.Warn("Event bus full, dropping %s %s event for %s", event.Entity, event.Kind, event.ID)
	}
}

// Subscribe returns a channel receiving events of kind and a function
// that ends the subscription.
func (b *Bus) Subscribe(kind roster.EntityKind) (<-chan roster.ChangeEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan roster.ChangeEvent, b.subBuffer)
	if b.stopped {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	if b.subs[kind] == nil {
		b.subs[kind] = make(map[int]chan roster.ChangeEvent)
	}
	b.subs[kind][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[kind][id]; ok {
				delete(b.subs[kind], id)
				close(sub)
			}
		})
	}
}

// Dropped reports how many events could not be queued or delivered.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

func (b *Bus) dispatch() {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			for {
				select {
				case event := <-b.queue:
					b.deliver(event)
				default:
					return
				}
			}
		case event := <-b.queue:
			b.deliver(event)
		}
	}
}

func (b *Bus) deliver(event roster.ChangeEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[event.Entity] {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
			logger.Warn("Subscriber for %s events is full, dropping %s event", event.Entity, event.Kind)
		}
	}
}

var _ interfaces.Notifier = (*Bus)(nil)
