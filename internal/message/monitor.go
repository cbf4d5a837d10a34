package message

import "sync"

// Delegate observes message lifecycle and may veto display. A veto is not an
// error; the delegate can track the suppression itself via
// m.Track("", core.EdgeSuppressed) if it wants the server to know.
type Delegate interface {
	ShouldShow(m *Message) bool
	OnShown(m *Message)
	OnDismissed(m *Message)
}

// Monitor owns the "currently shown message" state for one rendering
// coordinator. At most one message is displayed at a time.
type Monitor struct {
	mu       sync.Mutex
	current  *Message
	delegate Delegate
}

// NewMonitor builds a monitor; delegate may be nil.
func NewMonitor(delegate Delegate) *Monitor {
	return &Monitor{delegate: delegate}
}

func (mo *Monitor) IsMessageDisplayed() bool {
	mo.mu.Lock()
	defer mo.mu.Unlock()
	return mo.current != nil
}

func (mo *Monitor) shouldShow(m *Message) bool {
	mo.mu.Lock()
	occupied := mo.current != nil
	mo.mu.Unlock()
	if occupied {
		return false
	}
	if mo.delegate != nil {
		return mo.delegate.ShouldShow(m)
	}
	return true
}

func (mo *Monitor) displayed(m *Message) {
	mo.mu.Lock()
	mo.current = m
	mo.mu.Unlock()
	if mo.delegate != nil {
		mo.delegate.OnShown(m)
	}
}

func (mo *Monitor) dismissed(m *Message) {
	mo.mu.Lock()
	if mo.current == m {
		mo.current = nil
	}
	mo.mu.Unlock()
	if mo.delegate != nil {
		mo.delegate.OnDismissed(m)
	}
}
