// Package rules is the reference implementation of core.RulesEngine. It
// compiles the `{version, rules:[...]}` JSON dialect carried by ruleset items
// and matches loaded rules against events. The pipeline only depends on the
// core.RulesEngine contract, so a platform rules engine can replace it.
package rules

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sandevgo/engage/internal/core"
)

type Engine struct {
	mu    sync.RWMutex
	rules []*rule
}

func NewEngine() *Engine {
	return &Engine{}
}

// Compile parses a ruleset blob into matchable rules. The blob must be an
// object with a top-level "rules" array; each rule carries a condition tree
// and one or more consequences.
func (e *Engine) Compile(data []byte) ([]core.CompiledRule, error) {
	var doc rulesetDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse ruleset: %w", err)
	}
	if doc.Rules == nil {
		return nil, fmt.Errorf("ruleset has no rules array")
	}

	compiled := make([]core.CompiledRule, 0, len(doc.Rules))
	for i, rd := range doc.Rules {
		cond, err := parseCondition(rd.Condition)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if len(rd.Consequences) == 0 {
			return nil, fmt.Errorf("rule %d has no consequences", i)
		}
		consequences := make([]core.Consequence, 0, len(rd.Consequences))
		for j, cd := range rd.Consequences {
			if cd.ID == "" || cd.Type == "" {
				return nil, fmt.Errorf("rule %d consequence %d missing id or type", i, j)
			}
			consequences = append(consequences, core.Consequence{
				ID:     cd.ID,
				Type:   cd.Type,
				Detail: cd.Detail,
			})
		}
		compiled = append(compiled, &rule{condition: cond, consequences: consequences})
	}
	return compiled, nil
}

func (e *Engine) ReplaceRules(rs []core.CompiledRule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = native(rs)
}

func (e *Engine) AddRules(rs []core.CompiledRule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, native(rs)...)
}

// ProcessEvent returns the loaded rules whose condition matches the event.
func (e *Engine) ProcessEvent(ev core.Event) []core.CompiledRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var matched []core.CompiledRule
	for _, r := range e.rules {
		if r.condition.evaluate(ev) {
			matched = append(matched, r)
		}
	}
	return matched
}

// RuleCount is a diagnostics helper for tests.
func (e *Engine) RuleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// native filters out rules not compiled by this engine; foreign CompiledRule
// implementations cannot be evaluated here.
func native(rs []core.CompiledRule) []*rule {
	out := make([]*rule, 0, len(rs))
	for _, r := range rs {
		if n, ok := r.(*rule); ok {
			out = append(out, n)
		}
	}
	return out
}

type rulesetDoc struct {
	Version int       `json:"version"`
	Rules   []ruleDoc `json:"rules"`
}

type ruleDoc struct {
	Condition    json.RawMessage  `json:"condition"`
	Consequences []consequenceDoc `json:"consequences"`
}

type consequenceDoc struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Detail map[string]any `json:"detail"`
}

type rule struct {
	condition    condition
	consequences []core.Consequence
}

func (r *rule) Consequences() []core.Consequence {
	return r.consequences
}
