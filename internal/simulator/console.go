// Package simulator hosts a local harness around the extension: a console
// renderer standing in for the platform UI layer and an HTTP surface that
// plays the role of the edge so payloads and events can be driven by hand.
package simulator

import (
	"context"
	"sync"

	"github.com/inbucket/html2text"
	"github.com/sandevgo/engage/internal/core"
	"github.com/sandevgo/engage/pkg/log"
)

// ConsoleUI implements core.UIService against the terminal. Rendered HTML is
// converted to plain text for preview; navigation and alerts are logged.
type ConsoleUI struct {
	ctx context.Context

	mu     sync.Mutex
	handle *consoleHandle
}

func NewConsoleUI(ctx context.Context) *ConsoleUI {
	return &ConsoleUI{ctx: ctx}
}

func (u *ConsoleUI) Render(html string, overrideURLLoad func(url string) bool) (core.MessageHandle, error) {
	preview, err := html2text.FromString(html, html2text.Options{OmitLinks: false})
	if err != nil {
		// Preview is best effort; an unconvertible document still renders.
		preview = html
	}

	h := &consoleHandle{
		ctx:      u.ctx,
		preview:  preview,
		override: overrideURLLoad,
		handlers: map[string]func(string){},
	}

	u.mu.Lock()
	u.handle = h
	u.mu.Unlock()
	return h, nil
}

func (u *ConsoleUI) ShowURL(url string) error {
	log.FromCtx(u.ctx).Info().Str("url", url).Msg("opening external url")
	return nil
}

func (u *ConsoleUI) ShowAlert(title, text string) error {
	log.FromCtx(u.ctx).Info().Str("title", title).Str("text", text).Msg("native alert")
	return nil
}

// Tap feeds a URL into the current message's navigation override, simulating
// a user tapping a link inside the rendered content. Returns false when no
// message is on screen or the URL was not intercepted.
func (u *ConsoleUI) Tap(raw string) bool {
	u.mu.Lock()
	h := u.handle
	u.mu.Unlock()
	if h == nil || h.override == nil {
		return false
	}
	return h.override(raw)
}

type consoleHandle struct {
	ctx      context.Context
	preview  string
	override func(string) bool

	mu       sync.Mutex
	handlers map[string]func(string)
}

func (h *consoleHandle) Show() error {
	log.FromCtx(h.ctx).Info().Msg("---- in-app message ----\n" + h.preview)
	return nil
}

func (h *consoleHandle) Dismiss() error {
	log.FromCtx(h.ctx).Info().Msg("message dismissed")
	return nil
}

// EvaluateScript has no JavaScript runtime behind it; the script is logged and
// the callback receives an empty result so bridge handlers still fire.
func (h *consoleHandle) EvaluateScript(code string, cb func(result string)) {
	log.FromCtx(h.ctx).Info().Str("script", code).Msg("evaluating script")
	cb("")
}

func (h *consoleHandle) AddScriptHandler(name string, cb func(result string)) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.handlers[name]; ok {
		return false
	}
	h.handlers[name] = cb
	return true
}
