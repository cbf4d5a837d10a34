// Package engage is an in-app engagement SDK core. It ingests server-pushed
// personalization decision payloads, compiles their rulesets into a rules
// engine, persists the latest batch and its image assets across restarts, and
// runs the lifecycle of rendered in-app messages.
package engage

import (
	"context"
	"time"

	"github.com/sandevgo/engage/internal/cache"
	"github.com/sandevgo/engage/internal/core"
	"github.com/sandevgo/engage/internal/ingest"
	"github.com/sandevgo/engage/internal/message"
	"github.com/sandevgo/engage/internal/rules"
	"github.com/sandevgo/engage/pkg/log"
)

// Options wires the extension's collaborators. Device, Bus, Store, Network,
// and UI are required; Engine defaults to the built-in reference engine and
// Delegate may be nil.
type Options struct {
	Device   core.DeviceInfo
	Bus      core.Bus
	Engine   core.RulesEngine
	Store    core.CacheService
	Network  core.Network
	UI       core.UIService
	Delegate message.Delegate
	AssetTTL time.Duration
}

// Extension is the messaging extension instance.
type Extension struct {
	bus      core.Bus
	engine   core.RulesEngine
	ui       core.UIService
	cache    *cache.PropositionCache
	pipeline *ingest.Pipeline
	monitor  *message.Monitor
}

func New(opts Options) *Extension {
	engine := opts.Engine
	if engine == nil {
		engine = rules.NewEngine()
	}

	propCache := cache.New(opts.Store, opts.Network, opts.AssetTTL)
	return &Extension{
		bus:      opts.Bus,
		engine:   engine,
		ui:       opts.UI,
		cache:    propCache,
		pipeline: ingest.NewPipeline(opts.Device, engine, opts.Bus, propCache),
		monitor:  message.NewMonitor(opts.Delegate),
	}
}

// Start replays cached propositions into the rules engine and begins
// consuming decision events from the bus.
func (e *Extension) Start(ctx context.Context) {
	e.pipeline.Start(ctx)
}

// RequestMessages dispatches an outbound fetch for propositions targeting the
// given surface paths; nil requests the base app surface.
func (e *Extension) RequestMessages(ctx context.Context, surfacePaths []string) {
	e.pipeline.RequestMessages(ctx, surfacePaths)
}

// HandleEvent runs one generic event through the rules engine and realizes
// every matched in-app consequence into a triggered, shown message.
func (e *Extension) HandleEvent(ctx context.Context, ev core.Event) {
	logger := log.FromCtx(ctx)

	for _, rule := range e.engine.ProcessEvent(ev) {
		for _, cons := range rule.Consequences() {
			if cons.Type != core.ConsequenceTypeInApp {
				continue
			}
			msg, err := e.CreateMessage(cons)
			if err != nil {
				logger.Debug().Err(err).Str("consequence", cons.ID).Msg("consequence did not produce a message")
				continue
			}
			msg.Trigger(ctx)
			if err := msg.Show(ctx); err != nil {
				logger.Debug().Err(err).Str("message", msg.ID()).Msg("message not shown")
			}
		}
	}
}

// CreateMessage realizes one rule consequence into a message. Construction
// failures are returned, never thrown; the caller gets no message and the
// consequence is discarded.
func (e *Extension) CreateMessage(cons core.Consequence) (*message.Message, error) {
	deps := message.Deps{
		UI:         e.ui,
		Dispatcher: e.bus,
		Monitor:    e.monitor,
	}
	if info, ok := e.pipeline.PropositionInfoFor(cons.ID); ok {
		deps.PropositionInfo = &info
	}
	return message.New(cons, deps)
}

// PropositionsForSurface exposes cached propositions (feed items, content
// cards) addressed to one surface URI.
func (e *Extension) PropositionsForSurface(ctx context.Context, surfaceURI string) []core.Proposition {
	return e.pipeline.PropositionsForSurface(ctx, surfaceURI)
}

// ClearCachedData removes the proposition slot and all cached image assets.
func (e *Extension) ClearCachedData(ctx context.Context) {
	e.cache.ClearCachedData(ctx)
}

// LoadedRuleCount is read-only diagnostics.
func (e *Extension) LoadedRuleCount() int {
	return e.pipeline.LoadedRuleCount()
}

// ArePropositionsCached is read-only diagnostics.
func (e *Extension) ArePropositionsCached(ctx context.Context) bool {
	return e.pipeline.ArePropositionsCached(ctx)
}

// IsMessageDisplayed reports whether a message currently occupies the screen.
func (e *Extension) IsMessageDisplayed() bool {
	return e.monitor.IsMessageDisplayed()
}
