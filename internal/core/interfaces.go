package core

import (
	"context"
	"time"
)

// CompiledRule is the opaque result of compiling a ruleset item. The pipeline
// only counts rules and reads consequences off matched ones; evaluation is the
// engine's business.
type CompiledRule interface {
	Consequences() []Consequence
}

// RulesEngine compiles rule JSON into matchable rules and evaluates events
// against the currently loaded set.
type RulesEngine interface {
	Compile(data []byte) ([]CompiledRule, error)
	ReplaceRules(rules []CompiledRule)
	AddRules(rules []CompiledRule)
	ProcessEvent(event Event) []CompiledRule
}

// Dispatcher emits events onto the bus.
type Dispatcher interface {
	Dispatch(event Event)
}

// Bus delivers events to subscribers registered by (type, source). Delivery is
// in-process, exactly-once, and serialized per subscriber.
type Bus interface {
	Dispatcher
	Subscribe(eventType, source string, handler func(Event))
}

// CacheEntry is one stored blob plus revalidation metadata.
type CacheEntry struct {
	Data     []byte
	Metadata map[string]string
	Expiry   time.Time // zero means no expiry
}

// CacheService is the durable key/value store. Get returns nil for an absent
// or expired entry.
type CacheService interface {
	Get(ctx context.Context, namespace, key string) (*CacheEntry, error)
	Set(ctx context.Context, namespace, key string, entry CacheEntry) error
	Remove(ctx context.Context, namespace, key string) error
	RemoveNamespace(ctx context.Context, namespace string) error
}

// HTTPResponse is the result handed to a FetchAsync callback.
type HTTPResponse struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// Network performs asynchronous HTTP fetches. The callback runs on an
// unspecified goroutine; completion is not awaited by callers.
type Network interface {
	FetchAsync(ctx context.Context, url string, headers map[string]string, cb func(HTTPResponse, error))
}

// MessageHandle is a rendered message surface.
type MessageHandle interface {
	Show() error
	Dismiss() error
	EvaluateScript(code string, cb func(result string))
	// AddScriptHandler binds a named bridge handler in the webview. Returns
	// false if a handler with that name is already bound.
	AddScriptHandler(name string, cb func(result string)) bool
}

// UIService renders message content and opens external URLs.
type UIService interface {
	Render(html string, overrideURLLoad func(url string) bool) (MessageHandle, error)
	ShowURL(url string) error
	ShowAlert(title, text string) error
}

// DeviceInfo resolves identifiers of the host application.
type DeviceInfo interface {
	ApplicationID() string
}
