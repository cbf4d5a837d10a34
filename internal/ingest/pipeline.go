// Package ingest owns the decision-event pipeline: payload validation,
// request correlation, rule loading, and durable caching. Decision events are
// processed strictly in arrival order on the bus's serialized delivery
// goroutine, so the tracker's replace/merge decision is deterministic.
package ingest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sandevgo/engage/internal/cache"
	"github.com/sandevgo/engage/internal/core"
	"github.com/sandevgo/engage/internal/surface"
	"github.com/sandevgo/engage/pkg/log"
)

type Pipeline struct {
	device  core.DeviceInfo
	engine  core.RulesEngine
	bus     core.Bus
	cache   *cache.PropositionCache
	tracker *CorrelationTracker

	mu    sync.RWMutex
	known []surface.Surface
	info  map[string]core.PropositionInfo
}

func NewPipeline(device core.DeviceInfo, engine core.RulesEngine, bus core.Bus, propCache *cache.PropositionCache) *Pipeline {
	return &Pipeline{
		device:  device,
		engine:  engine,
		bus:     bus,
		cache:   propCache,
		tracker: NewCorrelationTracker(),
		info:    map[string]core.PropositionInfo{},
	}
}

// Start replays the cached batch into the freshly started rules engine and
// subscribes to inbound decision events.
func (p *Pipeline) Start(ctx context.Context) {
	p.bootstrap(ctx)
	p.bus.Subscribe(core.EventTypeEdge, core.EventSourceDecisions, func(ev core.Event) {
		p.OnDecisionEvent(ctx, ev)
	})
}

// bootstrap loads the last cached proposition batch, re-derives its rules, and
// adds them to the engine. The engine is empty at this point, so AddRules is
// equivalent to a replace but keeps the correlation state untouched: the first
// live payload still performs a full replace.
func (p *Pipeline) bootstrap(ctx context.Context) {
	logger := log.FromCtx(ctx)

	props := p.cache.GetCachedPropositions(ctx)
	if props == nil {
		return
	}

	var rules []core.CompiledRule
	info := map[string]core.PropositionInfo{}
	for _, prop := range props {
		propInfo := prop.Info()
		for _, item := range prop.Items {
			if item.Schema != core.SchemaRuleset {
				continue
			}
			compiled, ok := recompile(ctx, item, p.engine)
			if !ok {
				continue
			}
			rules = append(rules, compiled...)
			for _, r := range compiled {
				for _, c := range r.Consequences() {
					info[c.ID] = propInfo
				}
			}
		}
	}

	p.engine.AddRules(rules)
	p.tracker.RecordBootstrap(len(rules))
	p.setInfo(info)

	// Re-issuing the downloads is a fast no-op for assets that are still
	// cached with valid revalidation metadata.
	p.cache.CacheImageAssets(ctx, assetURLs(rules))

	logger.Info().Int("propositions", len(props)).Int("rules", len(rules)).
		Msg("replayed cached propositions into rules engine")
}

// OnDecisionEvent is the ingestion entry point for one inbound decision event.
func (p *Pipeline) OnDecisionEvent(ctx context.Context, ev core.Event) {
	logger := log.FromCtx(ctx)

	requestEventID, _ := ev.Data["requestEventId"].(string)
	entries := payloadEntries(ev)
	clear := len(entries) == 0

	var batch ValidatedBatch
	if !clear {
		batch = ParsePayload(ctx, entries, p.knownSurfaces(ctx), p.engine)
	}

	switch p.tracker.Apply(batch, requestEventID, clear) {
	case OpReplace:
		p.engine.ReplaceRules(batch.Rules)
		p.setInfo(batch.Info)
	case OpAdd:
		p.engine.AddRules(batch.Rules)
		p.mergeInfo(batch.Info)
	}

	if clear {
		// Empty payload clears loaded rules and the proposition slot; cached
		// image assets deliberately survive.
		p.cache.CachePropositions(ctx, nil)
		logger.Debug().Str("requestEventId", requestEventID).Msg("empty decision payload, cleared propositions")
		return
	}

	p.cache.CachePropositions(ctx, batch.Propositions)
	p.cache.CacheImageAssets(ctx, assetURLs(batch.Rules))

	logger.Debug().
		Str("requestEventId", requestEventID).
		Int("propositions", len(batch.Propositions)).
		Int("rules", len(batch.Rules)).
		Int("loaded", p.tracker.LoadedRuleCount()).
		Msg("ingested decision payload")
}

// RequestMessages dispatches an outbound fetch for propositions targeting the
// given surface paths (nil means the base app surface). No event is sent when
// the app id cannot be resolved or every supplied path was dropped.
func (p *Pipeline) RequestMessages(ctx context.Context, surfacePaths []string) {
	logger := log.FromCtx(ctx)

	surfaces, err := surface.Resolve(p.device.ApplicationID(), surfacePaths)
	if err != nil {
		logger.Error().Err(err).Msg("cannot request messages")
		return
	}
	if len(surfaces) == 0 {
		logger.Debug().Msg("no valid surfaces requested, skipping fetch")
		return
	}

	p.mu.Lock()
	p.known = surfaces
	p.mu.Unlock()

	p.bus.Dispatch(core.NewFetchRequestEvent(surface.URIs(surfaces)))
	logger.Debug().Strs("surfaces", surface.URIs(surfaces)).Msg("dispatched proposition fetch")
}

// PropositionsForSurface exposes cached non-ruleset propositions (feeds,
// content cards) addressed to one surface.
func (p *Pipeline) PropositionsForSurface(ctx context.Context, surfaceURI string) []core.Proposition {
	var out []core.Proposition
	for _, prop := range p.cache.GetCachedPropositions(ctx) {
		if prop.Scope == surfaceURI {
			out = append(out, prop)
		}
	}
	return out
}

// PropositionInfoFor resolves the tracking correlation for a consequence id.
func (p *Pipeline) PropositionInfoFor(consequenceID string) (core.PropositionInfo, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	info, ok := p.info[consequenceID]
	return info, ok
}

// LoadedRuleCount is read-only diagnostics.
func (p *Pipeline) LoadedRuleCount() int {
	return p.tracker.LoadedRuleCount()
}

// ArePropositionsCached is read-only diagnostics.
func (p *Pipeline) ArePropositionsCached(ctx context.Context) bool {
	return p.cache.ArePropositionsCached(ctx)
}

func (p *Pipeline) knownSurfaces(ctx context.Context) []surface.Surface {
	p.mu.RLock()
	known := p.known
	p.mu.RUnlock()
	if known != nil {
		return known
	}

	surfaces, err := surface.Resolve(p.device.ApplicationID(), nil)
	if err != nil {
		log.FromCtx(ctx).Debug().Err(err).Msg("no app id, every payload scope will be dropped")
		return nil
	}
	return surfaces
}

func (p *Pipeline) setInfo(info map[string]core.PropositionInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if info == nil {
		info = map[string]core.PropositionInfo{}
	}
	p.info = info
}

func (p *Pipeline) mergeInfo(info map[string]core.PropositionInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, v := range info {
		p.info[k] = v
	}
}

func payloadEntries(ev core.Event) []map[string]any {
	raw, _ := ev.Data["payload"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, e := range raw {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// assetURLs collects remote image references from rule consequences.
func assetURLs(rules []core.CompiledRule) []string {
	var urls []string
	for _, r := range rules {
		for _, c := range r.Consequences() {
			assets, _ := c.Detail["remoteAssets"].([]any)
			for _, a := range assets {
				if u, ok := a.(string); ok && u != "" {
					urls = append(urls, u)
				}
			}
		}
	}
	return urls
}

// recompile turns a cached ruleset item back into compiled rules.
func recompile(ctx context.Context, item core.PropositionItem, compiler core.RulesEngine) ([]core.CompiledRule, bool) {
	blob, err := json.Marshal(item.Data)
	if err != nil {
		log.FromCtx(ctx).Debug().Err(err).Str("item", item.ID).Msg("cached ruleset item unserializable, skipping")
		return nil, false
	}
	rules, err := compiler.Compile(blob)
	if err != nil {
		log.FromCtx(ctx).Debug().Err(err).Str("item", item.ID).Msg("cached ruleset item no longer compiles, skipping")
		return nil, false
	}
	return rules, true
}
