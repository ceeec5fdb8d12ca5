package viewport

import "sync"

// Tracker observes a Surface. Each attached tracker holds exactly one
// subscription until it is detached.
type Tracker struct {
	surface Surface
	scaleW  float64
	scaleH  float64

	mu          sync.RWMutex
	size        Size
	unsubscribe func()
	updates     chan Size
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithScale pre-scales every snapshot by the given factors.
func WithScale(width, height float64) Option {
	return func(t *Tracker) {
		t.scaleW, t.scaleH = width, height
	}
}

// NewTracker returns a detached tracker on surface.
func NewTracker(surface Surface, opts ...Option) *Tracker {
	t := &Tracker{surface: surface, scaleW: 1, scaleH: 1, updates: make(chan Size, 1)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Attach captures the current size and subscribes to resizes.
func (t *Tracker) Attach() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.unsubscribe != nil {
		return ErrAlreadyAttached
	}
	t.size = t.scaled()
	t.unsubscribe = t.surface.Subscribe(t.refresh)
	return nil
}

// Detach drops the subscription. Later resizes are ignored.
func (t *Tracker) Detach() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.unsubscribe == nil {
		return ErrNotAttached
	}
	t.unsubscribe()
	t.unsubscribe = nil
	return nil
}

// Attached reports whether the tracker holds a subscription.
func (t *Tracker) Attached() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.unsubscribe != nil
}

// Size returns the latest snapshot.
func (t *Tracker) Size() Size {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Updates delivers snapshots. Only the latest unread snapshot is kept.
func (t *Tracker) Updates() <-chan Size {
	return t.updates
}

func (t *Tracker) refresh() {
	t.mu.Lock()
	if t.unsubscribe == nil {
		t.mu.Unlock()
		return
	}
	t.size = t.scaled()
	size := t.size
	t.mu.Unlock()

	select {
	case <-t.updates:
	default:
	}
	select {
	case t.updates <- size:
	default:
	}
}

func (t *Tracker) scaled() Size {
	s := t.surface.Size()
	return Size{Width: s.Width * t.scaleW, Height: s.Height * t.scaleH}
}
