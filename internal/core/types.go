package core

const (
	SDKName    = "engage"
	SDKVersion = "0.1.0"

	// SurfaceScheme is the URI scheme for addressable in-app locations.
	SurfaceScheme = "app"
)

// SchemaType discriminates the payload carried by a proposition item.
type SchemaType string

const (
	SchemaRuleset        SchemaType = "ruleset-item"
	SchemaFeed           SchemaType = "feed-item"
	SchemaNativeAlert    SchemaType = "native-alert"
	SchemaHTMLContent    SchemaType = "html-content"
	SchemaJSONContent    SchemaType = "json-content"
	SchemaDefaultContent SchemaType = "default-content"
)

// Proposition is one personalization decision unit addressed to a surface.
// Identity is the ID; scope details are opaque correlation metadata forwarded
// verbatim into tracking events.
type Proposition struct {
	ID           string            `json:"id"`
	Scope        string            `json:"scope"`
	ScopeDetails map[string]any    `json:"scopeDetails"`
	Items        []PropositionItem `json:"items"`
}

// PropositionItem is one content unit within a proposition.
type PropositionItem struct {
	ID     string         `json:"id"`
	Schema SchemaType     `json:"schema"`
	Data   map[string]any `json:"data"`
}

// Info returns the slice of the proposition needed to build tracking events.
func (p Proposition) Info() PropositionInfo {
	return PropositionInfo{
		ID:           p.ID,
		Scope:        p.Scope,
		ScopeDetails: p.ScopeDetails,
	}
}

// PropositionInfo correlates an in-app message back to the proposition that
// produced it.
type PropositionInfo struct {
	ID           string         `json:"id"`
	Scope        string         `json:"scope"`
	ScopeDetails map[string]any `json:"scopeDetails"`
}

// Consequence is the realized action extracted from a matched rule.
type Consequence struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Detail map[string]any `json:"detail"`
}

// ConsequenceTypeInApp marks consequences that realize into a rendered message.
const ConsequenceTypeInApp = "inapp"

// EdgeEventType is the interaction event type reported for a message.
type EdgeEventType string

const (
	EdgeTrigger    EdgeEventType = "decisioning.propositionTrigger"
	EdgeDisplay    EdgeEventType = "decisioning.propositionDisplay"
	EdgeInteract   EdgeEventType = "decisioning.propositionInteract"
	EdgeDismiss    EdgeEventType = "decisioning.propositionDismiss"
	EdgeSuppressed EdgeEventType = "decisioning.propositionSuppressDisplay"
)
