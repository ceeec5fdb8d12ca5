// Package viewport tracks the size of the display surface the viewer draws on.
package viewport

import (
	"errors"
	"sync"
)

var (
	ErrAlreadyAttached = errors.New("viewport: tracker already attached")
	ErrNotAttached     = errors.New("viewport: tracker not attached")
)

// Size is a display size snapshot.
type Size struct {
	Width  float64
	Height float64
}

// Surface is a resizable display.
type Surface interface {
	Size() Size
	// Subscribe registers fn to run after every resize. The returned func
	// unregisters it.
	Subscribe(fn func()) (unsubscribe func())
}

// Terminal is a Surface fed by the terminal's window-size events.
type Terminal struct {
	mu        sync.RWMutex
	size      Size
	listeners map[int]func()
	next      int
}

// NewTerminal returns a surface with an initial size.
func NewTerminal(width, height int) *Terminal {
	return &Terminal{
		size:      Size{Width: float64(width), Height: float64(height)},
		listeners: map[int]func(){},
	}
}

func (t *Terminal) Size() Size {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

func (t *Terminal) Subscribe(fn func()) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.next
	t.next++
	t.listeners[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.listeners, id)
	}
}

// Listeners is the number of registered subscribers.
func (t *Terminal) Listeners() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.listeners)
}

// Resize records a new size and notifies subscribers once.
func (t *Terminal) Resize(width, height int) {
	t.mu.Lock()
	t.size = Size{Width: float64(width), Height: float64(height)}
	fns := make([]func(), 0, len(t.listeners))
	for _, fn := range t.listeners {
		fns = append(fns, fn)
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
