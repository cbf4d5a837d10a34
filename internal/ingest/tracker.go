package ingest

import "sync"

// EngineOp says how a validated batch must be applied to the rules engine.
type EngineOp int

const (
	OpReplace EngineOp = iota
	OpAdd
)

// CorrelationTracker decides, per inbound payload, whether the batch replaces
// or merges with the currently loaded rule set, keyed by the request event id
// the payload answers. It is the only owner of the loaded-rule count.
type CorrelationTracker struct {
	mu             sync.RWMutex
	requestEventID string
	seen           bool
	loadedRules    int
}

func NewCorrelationTracker() *CorrelationTracker {
	return &CorrelationTracker{}
}

// Apply accounts a validated batch. clear marks the full-clear signal (the
// raw payload was nil or empty): rules are replaced with nothing and the
// counter resets, but correlation state is left as is.
//
// The first payload seen for a request event id replaces all loaded rules,
// including the very first payload of the process, and including an absent id,
// which is its own correlation bucket. Every later payload with the same id
// merges additively.
func (t *CorrelationTracker) Apply(batch ValidatedBatch, requestEventID string, clear bool) EngineOp {
	t.mu.Lock()
	defer t.mu.Unlock()

	if clear {
		t.loadedRules = 0
		return OpReplace
	}

	if !t.seen || requestEventID != t.requestEventID {
		t.seen = true
		t.requestEventID = requestEventID
		t.loadedRules = len(batch.Rules)
		return OpReplace
	}

	t.loadedRules += len(batch.Rules)
	return OpAdd
}

// RecordBootstrap accounts rules replayed from the durable cache on cold
// start. It does not mark any request id as seen, so the first live payload
// still replaces the replayed set.
func (t *CorrelationTracker) RecordBootstrap(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loadedRules += n
}

// LoadedRuleCount is read-only diagnostics.
func (t *CorrelationTracker) LoadedRuleCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.loadedRules
}
