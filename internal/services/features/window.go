package features

import (
	"math"

	"ShadowTrade/internal/domain/models"
)

// Window is a fixed-capacity sliding buffer of close prices. Each Push
// advances the view by exactly one point once the buffer is full.
type Window struct {
	buf   []float64
	start int
	n     int
}

func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{buf: make([]float64, capacity)}
}

// Push appends a close, evicting the oldest one when full.
func (w *Window) Push(price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return models.ErrInvalidPrice
	}
	if w.n < len(w.buf) {
		w.buf[(w.start+w.n)%len(w.buf)] = price
		w.n++
		return nil
	}
	w.buf[w.start] = price
	w.start = (w.start + 1) % len(w.buf)
	return nil
}

func (w *Window) Len() int { return w.n }

func (w *Window) Cap() int { return len(w.buf) }

// Full reports whether an evaluation can run.
func (w *Window) Full() bool { return w.n == len(w.buf) }

// Snapshot copies the buffered closes, oldest first. Callers own the slice.
func (w *Window) Snapshot() []float64 {
	out := make([]float64, w.n)
	for i := 0; i < w.n; i++ {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}

// Last returns the most recent close, or 0 when empty.
func (w *Window) Last() float64 {
	if w.n == 0 {
		return 0
	}
	return w.buf[(w.start+w.n-1)%len(w.buf)]
}
