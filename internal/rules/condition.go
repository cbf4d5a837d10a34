package rules

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sandevgo/engage/internal/core"
)

// condition is one node of a rule's condition tree.
type condition interface {
	evaluate(ev core.Event) bool
}

type conditionDoc struct {
	Type       string          `json:"type"`
	Definition json.RawMessage `json:"definition"`
}

func parseCondition(raw json.RawMessage) (condition, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("condition is missing")
	}
	var doc conditionDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse condition: %w", err)
	}

	switch doc.Type {
	case "group":
		var def struct {
			Logic      string            `json:"logic"`
			Conditions []json.RawMessage `json:"conditions"`
		}
		if err := json.Unmarshal(doc.Definition, &def); err != nil {
			return nil, fmt.Errorf("failed to parse group definition: %w", err)
		}
		if def.Logic != "and" && def.Logic != "or" {
			return nil, fmt.Errorf("unknown group logic %q", def.Logic)
		}
		children := make([]condition, 0, len(def.Conditions))
		for _, c := range def.Conditions {
			child, err := parseCondition(c)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		return &groupCondition{logic: def.Logic, children: children}, nil

	case "matcher":
		var def struct {
			Key     string `json:"key"`
			Matcher string `json:"matcher"`
			Values  []any  `json:"values"`
		}
		if err := json.Unmarshal(doc.Definition, &def); err != nil {
			return nil, fmt.Errorf("failed to parse matcher definition: %w", err)
		}
		if def.Key == "" {
			return nil, fmt.Errorf("matcher has no key")
		}
		if !knownMatchers[def.Matcher] {
			return nil, fmt.Errorf("unknown matcher %q", def.Matcher)
		}
		return &matcherCondition{key: def.Key, matcher: def.Matcher, values: def.Values}, nil

	default:
		return nil, fmt.Errorf("unknown condition type %q", doc.Type)
	}
}

type groupCondition struct {
	logic    string
	children []condition
}

func (g *groupCondition) evaluate(ev core.Event) bool {
	if g.logic == "and" {
		for _, c := range g.children {
			if !c.evaluate(ev) {
				return false
			}
		}
		return true
	}
	for _, c := range g.children {
		if c.evaluate(ev) {
			return true
		}
	}
	return false
}

var knownMatchers = map[string]bool{
	"eq": true, "ne": true,
	"ex": true, "nx": true,
	"co": true, "nc": true,
	"sw": true, "ew": true,
	"gt": true, "ge": true,
	"lt": true, "le": true,
}

type matcherCondition struct {
	key     string
	matcher string
	values  []any
}

func (m *matcherCondition) evaluate(ev core.Event) bool {
	val, found := lookup(ev.Data, m.key)

	switch m.matcher {
	case "ex":
		return found
	case "nx":
		return !found
	}
	if !found {
		return false
	}

	// "ne" and "nc" hold against every candidate value; the rest need one hit.
	negated := m.matcher == "ne" || m.matcher == "nc"
	for _, want := range m.values {
		hit := matchOne(m.matcher, val, want)
		if negated && !hit {
			return false
		}
		if !negated && hit {
			return true
		}
	}
	return negated
}

func matchOne(matcher string, got, want any) bool {
	switch matcher {
	case "eq":
		return looseEqual(got, want)
	case "ne":
		return !looseEqual(got, want)
	case "co":
		return strings.Contains(str(got), str(want))
	case "nc":
		return !strings.Contains(str(got), str(want))
	case "sw":
		return strings.HasPrefix(str(got), str(want))
	case "ew":
		return strings.HasSuffix(str(got), str(want))
	case "gt", "ge", "lt", "le":
		g, ok1 := num(got)
		w, ok2 := num(want)
		if !ok1 || !ok2 {
			return false
		}
		switch matcher {
		case "gt":
			return g > w
		case "ge":
			return g >= w
		case "lt":
			return g < w
		default:
			return g <= w
		}
	}
	return false
}

// lookup walks dot-separated keys through nested maps.
func lookup(data map[string]any, key string) (any, bool) {
	parts := strings.Split(key, ".")
	var cur any = data
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func looseEqual(a, b any) bool {
	if an, ok := num(a); ok {
		if bn, ok := num(b); ok {
			return an == bn
		}
	}
	return str(a) == str(b)
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func num(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
