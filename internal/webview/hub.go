package webview

import (
	"context"
	"sync"
	"time"

	"openvpn-webui/internal/controller"
)

// EnvFunc returns the controller environment for a viewer.
type EnvFunc func(viewer string) controller.Env

// Hub owns the workspaces of all live sessions.
type Hub struct {
	ctx    context.Context
	envFor EnvFunc

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

// NewHub creates a hub. ctx is handed to every controller and is cancelled on
// shutdown.
func NewHub(ctx context.Context, envFor EnvFunc) *Hub {
	return &Hub{
		ctx:        ctx,
		envFor:     envFor,
		workspaces: make(map[string]*Workspace),
	}
}

// Workspace returns the workspace of session, creating and starting it on
// first use. A session that changes viewer gets a fresh workspace.
func (h *Hub) Workspace(session, viewer string) *Workspace {
	h.mu.Lock()
	ws, ok := h.workspaces[session]
	if ok && ws.Viewer() == viewer {
		h.mu.Unlock()
		return ws
	}
	if ok {
		ws.Close()
	}
	ws = NewWorkspace(h.ctx, h.envFor(viewer))
	h.workspaces[session] = ws
	h.mu.Unlock()

	ws.Start()
	return ws
}

// Drop discards the workspace of session.
func (h *Hub) Drop(session string) {
	h.mu.Lock()
	ws, ok := h.workspaces[session]
	delete(h.workspaces, session)
	h.mu.Unlock()
	if ok {
		ws.Close()
	}
}

// Prune closes the workspaces whose session valid rejects and returns how many
// were dropped.
func (h *Hub) Prune(valid func(session string) bool) int {
	h.mu.Lock()
	var stale []*Workspace
	for session, ws := range h.workspaces {
		if !valid(session) {
			stale = append(stale, ws)
			delete(h.workspaces, session)
		}
	}
	h.mu.Unlock()
	for _, ws := range stale {
		ws.Close()
	}
	return len(stale)
}

// Len returns the number of live workspaces.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.workspaces)
}

// Tick forwards a background tick to every workspace.
func (h *Hub) Tick() {
	h.mu.Lock()
	list := make([]*Workspace, 0, len(h.workspaces))
	for _, ws := range h.workspaces {
		list = append(list, ws)
	}
	h.mu.Unlock()
	for _, ws := range list {
		ws.Tick()
	}
}

// Run ticks the workspaces every interval until stop is closed.
func (h *Hub) Run(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.Tick()
		case <-stop:
			return
		}
	}
}
