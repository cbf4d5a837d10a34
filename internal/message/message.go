// Package message runs the lifecycle of one rendered in-app message and the
// private URL-scheme protocol its content uses to request dismissal,
// navigation, and script evaluation.
package message

import (
	"context"
	"errors"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/sandevgo/engage/internal/core"
	"github.com/sandevgo/engage/pkg/log"
)

// State is the message lifecycle position. Dismissed is terminal.
type State int

const (
	StateCreated State = iota
	StateTriggered
	StateDisplayed
	StateDismissed
)

// Construction failures. None of these escape as panics; a consequence that
// cannot become a message is logged and discarded.
var (
	ErrNoConsequenceID        = errors.New("consequence has no id")
	ErrUnsupportedConsequence = errors.New("unsupported consequence type")
	ErrNoDetail               = errors.New("consequence has no detail")
	ErrNoContent              = errors.New("consequence has no renderable content")

	// ErrSuppressed reports a delegate veto or an already occupied display.
	ErrSuppressed = errors.New("message display suppressed")
)

// Deps are the collaborators a message needs. PropositionInfo may be nil, in
// which case tracking calls are silently suppressed.
type Deps struct {
	UI              core.UIService
	Dispatcher      core.Dispatcher
	Monitor         *Monitor
	PropositionInfo *core.PropositionInfo
}

type Message struct {
	id         string
	html       string
	alertTitle string
	alertText  string
	propInfo   *core.PropositionInfo

	ui         core.UIService
	dispatcher core.Dispatcher
	monitor    *Monitor

	mu             sync.Mutex
	state          State
	autoTrack      bool
	handle         core.MessageHandle
	scriptHandlers map[string]func(result string)
}

// New realizes a rule consequence into a message. The consequence must carry
// a non-empty id, the in-app type, non-nil detail, and non-empty html content.
func New(cons core.Consequence, deps Deps) (*Message, error) {
	if cons.ID == "" {
		return nil, ErrNoConsequenceID
	}
	if cons.Type != core.ConsequenceTypeInApp {
		return nil, ErrUnsupportedConsequence
	}
	if cons.Detail == nil {
		return nil, ErrNoDetail
	}
	html, _ := cons.Detail["html"].(string)
	if html == "" {
		return nil, ErrNoContent
	}

	m := &Message{
		id:             cons.ID,
		html:           html,
		propInfo:       deps.PropositionInfo,
		ui:             deps.UI,
		dispatcher:     deps.Dispatcher,
		monitor:        deps.Monitor,
		state:          StateCreated,
		autoTrack:      true,
		scriptHandlers: map[string]func(string){},
	}

	// Native alerts render outside a webview: strip the markup down to plain
	// text for the platform dialog.
	if schema, _ := cons.Detail["schema"].(string); schema == string(core.SchemaNativeAlert) {
		m.alertTitle, _ = cons.Detail["title"].(string)
		m.alertText = bluemonday.StrictPolicy().Sanitize(html)
	}

	return m, nil
}

func (m *Message) ID() string {
	return m.id
}

func (m *Message) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetAutoTrack toggles automatic trigger/display/dismiss tracking. On by
// default.
func (m *Message) SetAutoTrack(enabled bool) {
	m.mu.Lock()
	m.autoTrack = enabled
	m.mu.Unlock()
}

// Trigger marks the message triggered by its matched rule.
func (m *Message) Trigger(ctx context.Context) {
	m.mu.Lock()
	if m.state != StateCreated {
		m.mu.Unlock()
		return
	}
	m.state = StateTriggered
	autoTrack := m.autoTrack
	m.mu.Unlock()

	if autoTrack {
		m.Track(ctx, "", core.EdgeTrigger)
	}
}

// Show asks the UI service to render the message. A monitor veto (delegate
// refusal or another message already on screen) returns ErrSuppressed and the
// message stays Triggered.
func (m *Message) Show(ctx context.Context) error {
	logger := log.FromCtx(ctx)

	m.mu.Lock()
	if m.state != StateTriggered {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if m.monitor != nil && !m.monitor.shouldShow(m) {
		logger.Debug().Str("message", m.id).Msg("message display suppressed")
		return ErrSuppressed
	}

	if m.alertText != "" {
		if err := m.ui.ShowAlert(m.alertTitle, m.alertText); err != nil {
			return err
		}
	} else {
		handle, err := m.ui.Render(m.html, func(u string) bool {
			return m.OverrideURLLoad(ctx, u)
		})
		if err != nil {
			return err
		}
		if err := handle.Show(); err != nil {
			return err
		}

		m.mu.Lock()
		m.handle = handle
		for name, fn := range m.scriptHandlers {
			handle.AddScriptHandler(name, fn)
		}
		m.mu.Unlock()
	}

	m.mu.Lock()
	m.state = StateDisplayed
	autoTrack := m.autoTrack
	m.mu.Unlock()

	if m.monitor != nil {
		m.monitor.displayed(m)
	}
	if autoTrack {
		m.Track(ctx, "", core.EdgeDisplay)
	}
	return nil
}

// Dismiss tears the rendered surface down. suppressAutoTrack skips the
// automatic dismiss event (used when an interaction was already tracked).
func (m *Message) Dismiss(ctx context.Context, suppressAutoTrack bool) {
	m.mu.Lock()
	if m.state != StateDisplayed {
		m.mu.Unlock()
		return
	}
	m.state = StateDismissed
	handle := m.handle
	m.handle = nil
	autoTrack := m.autoTrack
	m.mu.Unlock()

	if handle != nil {
		if err := handle.Dismiss(); err != nil {
			log.FromCtx(ctx).Warn().Err(err).Str("message", m.id).Msg("failed to tear down message surface")
		}
	}
	if m.monitor != nil {
		m.monitor.dismissed(m)
	}
	if !suppressAutoTrack && autoTrack {
		m.Track(ctx, "", core.EdgeDismiss)
	}
}

// Track emits one interaction event for this message. An empty event type is
// a no-op; a message without proposition info suppresses the event silently.
func (m *Message) Track(ctx context.Context, interaction string, eventType core.EdgeEventType) {
	if eventType == "" {
		return
	}
	if m.propInfo == nil {
		log.FromCtx(ctx).Debug().Str("message", m.id).Msg("no proposition info, tracking suppressed")
		return
	}
	m.dispatcher.Dispatch(core.NewTrackingEvent(eventType, interaction, *m.propInfo))
}

// RegisterScriptHandler binds a named script-bridge handler. Registration is
// first-wins: a duplicate name is dropped without error and only one bridge
// handler exists in the webview regardless of registration count.
func (m *Message) RegisterScriptHandler(ctx context.Context, name string, fn func(result string)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.scriptHandlers[name]; exists {
		log.FromCtx(ctx).Debug().Str("handler", name).Msg("script handler already registered, ignoring")
		return
	}
	m.scriptHandlers[name] = fn
	if m.handle != nil {
		m.handle.AddScriptHandler(name, fn)
	}
}

// OverrideURLLoad is the single entry point for navigation attempts from
// rendered content. It returns true when the load was intercepted by the
// protocol; false lets the webview (or the platform) handle the URL.
func (m *Message) OverrideURLLoad(ctx context.Context, requestedURL string) bool {
	logger := log.FromCtx(ctx)

	switch action := ParseInteraction(requestedURL).(type) {
	case NoOp:
		return false

	case AllowDefault:
		logger.Debug().Str("url", requestedURL).Msg("malformed interaction url, allowing default navigation")
		return false

	case Passthrough:
		// A deep link not authored by this system; hand it to external
		// navigation untracked. Intercepting the load keeps the webview from
		// navigating the same URL a second time.
		if err := m.ui.ShowURL(action.URL); err != nil {
			logger.Warn().Err(err).Str("url", action.URL).Msg("failed to open external url")
		}
		return true

	case Dismiss:
		if action.Interaction != "" {
			m.Track(ctx, action.Interaction, core.EdgeInteract)
		}
		switch {
		case action.Script != "":
			m.evaluateScript(action.Script)
		case action.Link != "":
			if err := m.ui.ShowURL(action.Link); err != nil {
				logger.Warn().Err(err).Str("url", action.Link).Msg("failed to open external url")
			}
		}
		// An explicitly tracked interaction makes the automatic dismiss
		// event redundant.
		m.Dismiss(ctx, action.Interaction != "")
		return true
	}
	return false
}

// evaluateScript runs a js= directive through the webview bridge and fans the
// asynchronous result out to the registered handlers.
func (m *Message) evaluateScript(code string) {
	m.mu.Lock()
	handle := m.handle
	handlers := make([]func(string), 0, len(m.scriptHandlers))
	for _, fn := range m.scriptHandlers {
		handlers = append(handlers, fn)
	}
	m.mu.Unlock()

	if handle == nil {
		return
	}
	handle.EvaluateScript(code, func(result string) {
		for _, fn := range handlers {
			fn(result)
		}
	})
}
