package ingest

import (
	"context"
	"encoding/json"

	"github.com/sandevgo/engage/internal/core"
	"github.com/sandevgo/engage/internal/surface"
	"github.com/sandevgo/engage/pkg/log"
)

// ValidatedBatch is the output of payload validation: the propositions that
// survived every filter, the rules compiled from their ruleset items, and the
// consequence-id to proposition-info index used for tracking correlation.
type ValidatedBatch struct {
	Propositions []core.Proposition
	Rules        []core.CompiledRule
	Info         map[string]core.PropositionInfo
}

// ParsePayload filters a raw decision payload down to valid propositions
// scoped to the known surfaces and compiles their rulesets. Every filter is
// per-entry: a bad item drops only that item, a bad proposition only that
// proposition, never the batch.
func ParsePayload(ctx context.Context, payload []map[string]any, known []surface.Surface, compiler core.RulesEngine) ValidatedBatch {
	logger := log.FromCtx(ctx)
	batch := ValidatedBatch{Info: map[string]core.PropositionInfo{}}

	for _, entry := range payload {
		scope, _ := entry["scope"].(string)
		if scope == "" {
			logger.Debug().Msg("dropping payload entry with no scope")
			continue
		}
		if !surface.Contains(known, scope) {
			// Cross-surface payloads are routine in shared response streams.
			logger.Debug().Str("scope", scope).Msg("ignoring payload entry for unknown surface")
			continue
		}

		scopeDetails, ok := entry["scopeDetails"].(map[string]any)
		if !ok || scopeDetails == nil {
			logger.Debug().Str("scope", scope).Msg("dropping payload entry with no scopeDetails")
			continue
		}

		id, _ := entry["id"].(string)
		if id == "" {
			logger.Debug().Str("scope", scope).Msg("dropping payload entry with no id")
			continue
		}

		prop := core.Proposition{
			ID:           id,
			Scope:        scope,
			ScopeDetails: scopeDetails,
		}

		var propRules []core.CompiledRule
		for _, rawItem := range items(entry) {
			item, rules, ok := validateItem(ctx, rawItem, compiler)
			if !ok {
				continue
			}
			prop.Items = append(prop.Items, item)
			propRules = append(propRules, rules...)
		}

		if len(prop.Items) == 0 {
			logger.Debug().Str("proposition", id).Msg("dropping proposition with no valid items")
			continue
		}

		batch.Propositions = append(batch.Propositions, prop)
		batch.Rules = append(batch.Rules, propRules...)
		info := prop.Info()
		for _, r := range propRules {
			for _, c := range r.Consequences() {
				batch.Info[c.ID] = info
			}
		}
	}

	return batch
}

func items(entry map[string]any) []map[string]any {
	raw, _ := entry["items"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, it := range raw {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// validateItem checks the item envelope and, for ruleset items, compiles the
// embedded rules. A compile failure drops only this item.
func validateItem(ctx context.Context, raw map[string]any, compiler core.RulesEngine) (core.PropositionItem, []core.CompiledRule, bool) {
	logger := log.FromCtx(ctx)

	id, _ := raw["id"].(string)
	if id == "" {
		logger.Debug().Msg("dropping item with no id")
		return core.PropositionItem{}, nil, false
	}
	schema, _ := raw["schema"].(string)
	if schema == "" {
		logger.Debug().Str("item", id).Msg("dropping item with no schema")
		return core.PropositionItem{}, nil, false
	}
	data, ok := raw["data"].(map[string]any)
	if !ok || data == nil {
		logger.Debug().Str("item", id).Msg("dropping item with no data")
		return core.PropositionItem{}, nil, false
	}

	item := core.PropositionItem{
		ID:     id,
		Schema: core.SchemaType(schema),
		Data:   data,
	}

	if item.Schema != core.SchemaRuleset {
		return item, nil, true
	}

	blob, err := json.Marshal(data)
	if err != nil {
		logger.Debug().Err(err).Str("item", id).Msg("dropping ruleset item with unserializable data")
		return core.PropositionItem{}, nil, false
	}
	rules, err := compiler.Compile(blob)
	if err != nil {
		logger.Debug().Err(err).Str("item", id).Msg("dropping ruleset item that failed to compile")
		return core.PropositionItem{}, nil, false
	}
	return item, rules, true
}
