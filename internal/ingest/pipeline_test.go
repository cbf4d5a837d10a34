package ingest

import (
	"context"
	"testing"

	"github.com/sandevgo/engage/internal/cache"
	"github.com/sandevgo/engage/internal/core"
	"github.com/sandevgo/engage/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipelineFixture struct {
	pipeline *Pipeline
	engine   *rules.Engine
	store    *memStore
	network  *memNetwork
	bus      *captureBus
	cache    *cache.PropositionCache
}

func newFixture(store *memStore) *pipelineFixture {
	engine := rules.NewEngine()
	network := &memNetwork{}
	b := &captureBus{}
	pc := cache.New(store, network, 0)
	return &pipelineFixture{
		pipeline: NewPipeline(staticDevice{appID: "acme"}, engine, b, pc),
		engine:   engine,
		store:    store,
		network:  network,
		bus:      b,
		cache:    pc,
	}
}

func TestPipeline_IngestCachesSurvivingPropositions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(newMemStore())

	f.pipeline.OnDecisionEvent(ctx, decisionEvent("r1",
		propositionEntry("p1", "app://acme", "c1"),
		propositionEntry("p2", "app://acme", "c2"),
		propositionEntry("p3", "app://other", "c3"), // out of scope
	))

	cached := f.cache.GetCachedPropositions(ctx)
	require.Len(t, cached, 2)
	assert.Equal(t, "p1", cached[0].ID)
	assert.Equal(t, "p2", cached[1].ID)
	assert.Equal(t, 2, f.pipeline.LoadedRuleCount())
	assert.Equal(t, 2, f.engine.RuleCount())
}

func TestPipeline_SameRequestIDMerges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(newMemStore())

	f.pipeline.OnDecisionEvent(ctx, decisionEvent("r1", propositionEntry("p1", "app://acme", "c1")))
	f.pipeline.OnDecisionEvent(ctx, decisionEvent("r1", propositionEntry("p2", "app://acme", "c2")))

	// Rules merged in memory...
	assert.Equal(t, 2, f.pipeline.LoadedRuleCount())
	assert.Equal(t, 2, f.engine.RuleCount())

	// ...but the durable slot holds only the last written batch.
	cached := f.cache.GetCachedPropositions(ctx)
	require.Len(t, cached, 1)
	assert.Equal(t, "p2", cached[0].ID)
}

func TestPipeline_NewRequestIDReplaces(t *testing.T) {
	ctx := context.Background()
	f := newFixture(newMemStore())

	f.pipeline.OnDecisionEvent(ctx, decisionEvent("r1",
		propositionEntry("p1", "app://acme", "c1"),
		propositionEntry("p2", "app://acme", "c2"),
	))
	f.pipeline.OnDecisionEvent(ctx, decisionEvent("r2", propositionEntry("p3", "app://acme", "c3")))

	assert.Equal(t, 1, f.pipeline.LoadedRuleCount())
	assert.Equal(t, 1, f.engine.RuleCount())

	// Correlation info follows the replace: the old consequence is gone.
	_, ok := f.pipeline.PropositionInfoFor("c1")
	assert.False(t, ok)
	_, ok = f.pipeline.PropositionInfoFor("c3")
	assert.True(t, ok)
}

func TestPipeline_EmptyPayloadClearsRulesButKeepsAssets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(newMemStore())

	f.pipeline.OnDecisionEvent(ctx, decisionEvent("r1",
		propositionEntry("p1", "app://acme", "c1", "https://cdn.example.com/hero.png"),
	))
	require.Equal(t, 1, f.pipeline.LoadedRuleCount())
	require.True(t, f.pipeline.ArePropositionsCached(ctx))
	require.Equal(t, []string{"https://cdn.example.com/hero.png"}, f.network.requested())

	f.pipeline.OnDecisionEvent(ctx, core.NewDecisionEvent("r1", nil))

	assert.Equal(t, 0, f.pipeline.LoadedRuleCount())
	assert.Equal(t, 0, f.engine.RuleCount())
	assert.False(t, f.pipeline.ArePropositionsCached(ctx))

	// Image assets deliberately survive the proposition clear.
	body, ok := f.cache.GetImageAsset(ctx, "https://cdn.example.com/hero.png")
	assert.True(t, ok)
	assert.Equal(t, []byte("img"), body)
}

func TestPipeline_RestartReplaysOnlyLastBatch(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	first := newFixture(store)
	first.pipeline.OnDecisionEvent(ctx, decisionEvent("r1", propositionEntry("p1", "app://acme", "c1")))
	first.pipeline.OnDecisionEvent(ctx, decisionEvent("r1", propositionEntry("p2", "app://acme", "c2")))
	require.Equal(t, 2, first.pipeline.LoadedRuleCount())

	// Cold start against the same durable store. In memory the engine held
	// the union of both merged batches, but the durable slot is
	// overwrite-only, so only p2 comes back. Pinned on purpose: merge-on-write
	// would change observable restart behavior.
	second := newFixture(store)
	second.pipeline.Start(ctx)

	assert.Equal(t, 1, second.pipeline.LoadedRuleCount())
	assert.Equal(t, 1, second.engine.RuleCount())
	_, ok := second.pipeline.PropositionInfoFor("c2")
	assert.True(t, ok)
	_, ok = second.pipeline.PropositionInfoFor("c1")
	assert.False(t, ok)
}

func TestPipeline_BootstrapThenFirstPayloadReplaces(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	first := newFixture(store)
	first.pipeline.OnDecisionEvent(ctx, decisionEvent("r1", propositionEntry("p1", "app://acme", "c1")))

	second := newFixture(store)
	second.pipeline.Start(ctx)
	require.Equal(t, 1, second.pipeline.LoadedRuleCount())

	second.pipeline.OnDecisionEvent(ctx, decisionEvent("r9", propositionEntry("p9", "app://acme", "c9")))

	assert.Equal(t, 1, second.pipeline.LoadedRuleCount())
	assert.Equal(t, 1, second.engine.RuleCount())
	_, ok := second.pipeline.PropositionInfoFor("c1")
	assert.False(t, ok, "replayed rules must be replaced by the first live payload")
}

func TestPipeline_BootstrapRefetchesAssets(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	first := newFixture(store)
	first.pipeline.OnDecisionEvent(ctx, decisionEvent("r1",
		propositionEntry("p1", "app://acme", "c1", "https://cdn.example.com/a.png"),
	))

	second := newFixture(store)
	second.pipeline.Start(ctx)

	assert.Equal(t, []string{"https://cdn.example.com/a.png"}, second.network.requested())
}

func TestPipeline_RequestMessages(t *testing.T) {
	ctx := context.Background()

	t.Run("base_surface_fetch", func(t *testing.T) {
		f := newFixture(newMemStore())
		f.pipeline.RequestMessages(ctx, nil)

		events := f.bus.dispatched()
		require.Len(t, events, 1)
		assert.Equal(t, core.EventTypeEdge, events[0].Type)
		assert.Equal(t, core.EventSourceRequestContent, events[0].Source)

		personalization := events[0].Data["personalization"].(map[string]any)
		assert.Equal(t, []any{"app://acme"}, personalization["surfaces"])
	})

	t.Run("paths_fetch", func(t *testing.T) {
		f := newFixture(newMemStore())
		f.pipeline.RequestMessages(ctx, []string{"promos/feed1", "", "promos/feed2"})

		events := f.bus.dispatched()
		require.Len(t, events, 1)
		personalization := events[0].Data["personalization"].(map[string]any)
		assert.Equal(t, []any{"app://acme/promos/feed1", "app://acme/promos/feed2"}, personalization["surfaces"])
	})

	t.Run("all_paths_dropped_sends_nothing", func(t *testing.T) {
		f := newFixture(newMemStore())
		f.pipeline.RequestMessages(ctx, []string{"", "  "})
		assert.Empty(t, f.bus.dispatched())
	})

	t.Run("no_app_id_sends_nothing", func(t *testing.T) {
		engine := rules.NewEngine()
		b := &captureBus{}
		pc := cache.New(newMemStore(), &memNetwork{}, 0)
		p := NewPipeline(staticDevice{appID: ""}, engine, b, pc)

		p.RequestMessages(ctx, nil)
		assert.Empty(t, b.dispatched())
	})

	t.Run("requested_surfaces_become_known_for_validation", func(t *testing.T) {
		f := newFixture(newMemStore())
		f.pipeline.RequestMessages(ctx, []string{"promos"})

		f.pipeline.OnDecisionEvent(ctx, decisionEvent("r1",
			propositionEntry("p1", "app://acme/promos", "c1"),
			propositionEntry("p2", "app://acme", "c2"), // base no longer requested
		))

		cached := f.cache.GetCachedPropositions(ctx)
		require.Len(t, cached, 1)
		assert.Equal(t, "p1", cached[0].ID)
	})
}

func TestPipeline_PropositionsForSurface(t *testing.T) {
	ctx := context.Background()
	f := newFixture(newMemStore())

	f.pipeline.OnDecisionEvent(ctx, decisionEvent("r1",
		feedEntry("p1", "app://acme"),
		propositionEntry("p2", "app://acme", "c2"),
	))

	props := f.pipeline.PropositionsForSurface(ctx, "app://acme")
	assert.Len(t, props, 2)
	assert.Empty(t, f.pipeline.PropositionsForSurface(ctx, "app://acme/promos"))
}
