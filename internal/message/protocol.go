package message

import (
	"net/url"
	"strings"
)

// Scheme is the private URL scheme rendered content uses to signal actions
// back to the host.
const Scheme = "inapp"

const (
	hostDismiss      = "dismiss"
	queryInteraction = "interaction"
	queryLink        = "link"
	scriptPrefix     = "js="
)

// Action is the typed result of parsing an in-message navigation attempt.
type Action interface {
	isAction()
}

// NoOp: blank request, nothing happens at all.
type NoOp struct{}

// AllowDefault: the URL did not parse; default navigation proceeds, nothing
// is tracked.
type AllowDefault struct{}

// Passthrough: a foreign scheme or host not authored by this system; handed
// to external navigation untracked, preserving normal deep-link behavior.
type Passthrough struct {
	URL string
}

// Dismiss: the message is torn down, optionally after tracking an interaction
// label and either opening an external link or evaluating a script directive.
// Link and Script are mutually exclusive.
type Dismiss struct {
	Interaction string
	Link        string
	Script      string
}

func (NoOp) isAction()         {}
func (AllowDefault) isAction() {}
func (Passthrough) isAction()  {}
func (Dismiss) isAction()      {}

// ParseInteraction classifies one navigation attempt from rendered content.
func ParseInteraction(raw string) Action {
	if strings.TrimSpace(raw) == "" {
		return NoOp{}
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		// url.Parse cannot carry every scheme platforms use in deep links
		// (an underscore as in adb_deeplink:// is invalid to it). Anything
		// still shaped scheme://target belongs to external navigation; only
		// shapeless input falls back to default handling.
		if isSchemeShaped(raw) {
			return Passthrough{URL: raw}
		}
		return AllowDefault{}
	}
	if u.Host == "" {
		return AllowDefault{}
	}

	if u.Scheme != Scheme || u.Host != hostDismiss {
		return Passthrough{URL: raw}
	}

	q := u.Query()
	action := Dismiss{Interaction: q.Get(queryInteraction)}

	// Query values arrive percent-decoded. A link that is itself a script
	// directive is evaluated through the bridge rather than navigated to.
	link := q.Get(queryLink)
	if strings.HasPrefix(link, scriptPrefix) {
		action.Script = strings.TrimPrefix(link, scriptPrefix)
	} else {
		action.Link = link
	}
	return action
}

// isSchemeShaped reports whether raw looks like <scheme>://<target> without
// insisting on url.Parse's scheme grammar.
func isSchemeShaped(raw string) bool {
	i := strings.Index(raw, "://")
	return i > 0 && !strings.ContainsAny(raw[:i], " \t")
}
