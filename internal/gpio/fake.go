package gpio

// FakeRelay is a test double that records relay writes.
type FakeRelay struct {
	// ActiveLow mirrors the real relay wiring for Levels.
	ActiveLow bool

	// Writes holds every logical state passed to Set, in order.
	Writes []bool

	// Closed tracks if Close was called
	Closed bool

	// SetError, if set, will be returned by Set()
	SetError error
}

// NewFakeRelay creates a FakeRelay with no writes.
func NewFakeRelay() *FakeRelay {
	return &FakeRelay{}
}

// Set records the requested state.
func (f *FakeRelay) Set(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Writes = append(f.Writes, on)
	return nil
}

// Close marks the relay as closed.
func (f *FakeRelay) Close() error {
	f.Closed = true
	return nil
}

// On reports the last state written and whether any write happened.
func (f *FakeRelay) On() (on bool, ok bool) {
	if len(f.Writes) == 0 {
		return false, false
	}
	return f.Writes[len(f.Writes)-1], true
}

// Levels returns the raw line values the writes would have produced.
func (f *FakeRelay) Levels() []int {
	out := make([]int, len(f.Writes))
	for i, on := range f.Writes {
		out[i] = level(on, f.ActiveLow)
	}
	return out
}

// Reset clears recorded writes.
func (f *FakeRelay) Reset() {
	f.Writes = nil
	f.Closed = false
}
