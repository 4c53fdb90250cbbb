package controller

import (
	"context"
	"fmt"

	"openvpn-webui/internal/i18n"
	"openvpn-webui/internal/panel"
)

// Tab identifiers in display order.
const (
	TabSettings     = "settings"
	TabCertificates = "certificates"
	TabLog          = "log"
	TabStatus       = "status"
)

// Constructor builds the controller of one tab.
type Constructor func(env Env, pane panel.Pane) Controller

// Tab is a selectable entry of the panel navigation.
type Tab struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

var tabOrder = []string{TabSettings, TabCertificates, TabLog, TabStatus}

var constructors = map[string]Constructor{
	TabSettings:     func(env Env, pane panel.Pane) Controller { return NewSettings(env, pane) },
	TabCertificates: func(env Env, pane panel.Pane) Controller { return NewCertificates(env, pane) },
	TabLog:          func(env Env, pane panel.Pane) Controller { return NewServerLog(env, pane) },
	TabStatus:       func(env Env, pane panel.Pane) Controller { return NewStatusLog(env, pane) },
}

// Tabs returns the navigation entries in display order.
func Tabs() []Tab {
	out := make([]Tab, 0, len(tabOrder))
	for _, id := range tabOrder {
		out = append(out, Tab{ID: id, Label: i18n.T("tab." + id)})
	}
	return out
}

// Router binds tab selection to a freshly constructed controller.
type Router struct {
	env    Env
	pane   panel.Pane
	active string
	ctrl   Controller
}

// NewRouter creates a router for pane. Nothing is shown until Select.
func NewRouter(env Env, pane panel.Pane) *Router {
	return &Router{env: env, pane: pane}
}

// Select drops the current controller and displays tab id.
func (r *Router) Select(ctx context.Context, id string) error {
	construct, ok := constructors[id]
	if !ok {
		return fmt.Errorf("unknown tab %q", id)
	}
	r.active = id
	r.ctrl = construct(r.env, r.pane)
	r.ctrl.DisplayContent(ctx)
	return nil
}

// SelectFirst displays the first tab.
func (r *Router) SelectFirst(ctx context.Context) {
	_ = r.Select(ctx, tabOrder[0])
}

// Active returns the selected tab id, empty before the first Select.
func (r *Router) Active() string {
	return r.active
}

// Current returns the active controller.
func (r *Router) Current() Controller {
	return r.ctrl
}

// Tick forwards a background tick to the active controller when it follows.
func (r *Router) Tick(ctx context.Context) {
	if follower, ok := r.ctrl.(Follower); ok {
		follower.Tick(ctx)
	}
}
