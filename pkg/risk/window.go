package risk

// DefaultWindowCap is the reference bound on per-session emotion history.
const DefaultWindowCap = 30

// Window is a bounded FIFO of the most recent emotion samples for one
// session. It is not goroutine-safe; the owning session lane serializes
// appends and reads under its own lock.
type Window struct {
	cap     int
	samples []EmotionSample
}

// NewWindow creates a window holding at most capacity samples. A
// non-positive capacity falls back to DefaultWindowCap.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultWindowCap
	}
	return &Window{cap: capacity}
}

// Append adds a sample, evicting the oldest when the window is full.
func (w *Window) Append(s EmotionSample) {
	w.samples = append(w.samples, s)
	if len(w.samples) > w.cap {
		w.samples = w.samples[1:]
	}
}

// Samples returns the window contents oldest-first. The returned slice is a
// copy; extractors may hold it across the lane lock boundary.
func (w *Window) Samples() []EmotionSample {
	out := make([]EmotionSample, len(w.samples))
	copy(out, w.samples)
	return out
}

// Len returns the current sample count.
func (w *Window) Len() int { return len(w.samples) }
