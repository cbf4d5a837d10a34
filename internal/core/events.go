package core

import "github.com/google/uuid"

// Event bus type/source pairs handled by this subsystem.
const (
	EventTypeEdge      = "edge"
	EventTypeMessaging = "messaging"

	EventSourceDecisions      = "personalization:decisions"
	EventSourceRequestContent = "requestContent"
	EventSourceTracking       = "trackingContent"
)

// Event is one unit on the bus.
type Event struct {
	ID     string
	Type   string
	Source string
	Data   map[string]any
}

// NewFetchRequestEvent builds the outbound request for propositions targeting
// the given surface URIs.
func NewFetchRequestEvent(surfaceURIs []string) Event {
	uris := make([]any, len(surfaceURIs))
	for i, s := range surfaceURIs {
		uris[i] = s
	}
	return Event{
		ID:     uuid.NewString(),
		Type:   EventTypeEdge,
		Source: EventSourceRequestContent,
		Data: map[string]any{
			"personalization": map[string]any{
				"surfaces": uris,
			},
		},
	}
}

// NewTrackingEvent builds an interaction tracking event for a message. The
// proposition's scope details travel verbatim so the server can correlate the
// interaction back to the decision that produced it.
func NewTrackingEvent(eventType EdgeEventType, interaction string, info PropositionInfo) Event {
	decisioning := map[string]any{
		"propositionEventType": string(eventType),
		"propositions": []any{
			map[string]any{
				"id":           info.ID,
				"scope":        info.Scope,
				"scopeDetails": info.ScopeDetails,
			},
		},
	}
	if interaction != "" {
		decisioning["propositionAction"] = map[string]any{"label": interaction}
	}
	return Event{
		ID:     uuid.NewString(),
		Type:   EventTypeMessaging,
		Source: EventSourceTracking,
		Data: map[string]any{
			"eventType":    string(eventType),
			"decisioning":  decisioning,
			"interactName": interaction,
		},
	}
}

// NewDecisionEvent wraps an inbound personalization payload the way the edge
// delivers it. Used by the simulator and tests.
func NewDecisionEvent(requestEventID string, payload []any) Event {
	return Event{
		ID:     uuid.NewString(),
		Type:   EventTypeEdge,
		Source: EventSourceDecisions,
		Data: map[string]any{
			"requestEventId": requestEventID,
			"payload":        payload,
		},
	}
}
