package ingest

import (
	"context"
	"sync"

	"github.com/sandevgo/engage/internal/core"
)

// memStore is an in-memory core.CacheService for pipeline tests.
type memStore struct {
	mu      sync.Mutex
	entries map[string]core.CacheEntry
}

func newMemStore() *memStore {
	return &memStore{entries: map[string]core.CacheEntry{}}
}

func (s *memStore) Get(_ context.Context, namespace, key string) (*core.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[namespace+"/"+key]
	if !ok {
		return nil, nil
	}
	cp := e
	return &cp, nil
}

func (s *memStore) Set(_ context.Context, namespace, key string, entry core.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[namespace+"/"+key] = entry
	return nil
}

func (s *memStore) Remove(_ context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, namespace+"/"+key)
	return nil
}

func (s *memStore) RemoveNamespace(_ context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.entries {
		if len(k) > len(namespace) && k[:len(namespace)+1] == namespace+"/" {
			delete(s.entries, k)
		}
	}
	return nil
}

// memNetwork serves canned bodies synchronously and records requested URLs.
type memNetwork struct {
	mu       sync.Mutex
	requests []string
}

func (n *memNetwork) FetchAsync(_ context.Context, url string, _ map[string]string, cb func(core.HTTPResponse, error)) {
	n.mu.Lock()
	n.requests = append(n.requests, url)
	n.mu.Unlock()
	cb(core.HTTPResponse{Status: 200, Headers: map[string]string{}, Body: []byte("img")}, nil)
}

func (n *memNetwork) requested() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.requests...)
}

// captureBus records dispatched events and delivers subscriptions inline.
type captureBus struct {
	mu       sync.Mutex
	events   []core.Event
	handlers []func(core.Event)
}

func (b *captureBus) Dispatch(ev core.Event) {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
}

func (b *captureBus) Subscribe(_, _ string, handler func(core.Event)) {
	b.mu.Lock()
	b.handlers = append(b.handlers, handler)
	b.mu.Unlock()
}

func (b *captureBus) dispatched() []core.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]core.Event(nil), b.events...)
}

type staticDevice struct {
	appID string
}

func (d staticDevice) ApplicationID() string { return d.appID }

// propositionEntry builds one raw payload entry holding a single ruleset item
// whose rule matches `{"action":"show"}` events.
func propositionEntry(propID, scope, consequenceID string, assets ...string) map[string]any {
	assetList := make([]any, len(assets))
	for i, a := range assets {
		assetList[i] = a
	}
	return map[string]any{
		"id":           propID,
		"scope":        scope,
		"scopeDetails": map[string]any{"correlationID": propID + "-exec"},
		"items": []any{
			map[string]any{
				"id":     propID + "-item",
				"schema": string(core.SchemaRuleset),
				"data":   rulesetData(consequenceID, assetList),
			},
		},
	}
}

func rulesetData(consequenceID string, assets []any) map[string]any {
	detail := map[string]any{"html": "<html><body>hi</body></html>"}
	if len(assets) > 0 {
		detail["remoteAssets"] = assets
	}
	return map[string]any{
		"version": 1,
		"rules": []any{
			map[string]any{
				"condition": map[string]any{
					"type": "matcher",
					"definition": map[string]any{
						"key":     "action",
						"matcher": "eq",
						"values":  []any{"show"},
					},
				},
				"consequences": []any{
					map[string]any{
						"id":     consequenceID,
						"type":   core.ConsequenceTypeInApp,
						"detail": detail,
					},
				},
			},
		},
	}
}

func feedEntry(propID, scope string) map[string]any {
	return map[string]any{
		"id":           propID,
		"scope":        scope,
		"scopeDetails": map[string]any{"correlationID": propID + "-exec"},
		"items": []any{
			map[string]any{
				"id":     propID + "-item",
				"schema": string(core.SchemaFeed),
				"data":   map[string]any{"title": "deal of the day"},
			},
		},
	}
}

func decisionEvent(requestEventID string, entries ...map[string]any) core.Event {
	payload := make([]any, len(entries))
	for i, e := range entries {
		payload[i] = e
	}
	return core.NewDecisionEvent(requestEventID, payload)
}
