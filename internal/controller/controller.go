// Package controller implements the panel tabs: OpenVPN settings,
// certificates and the log viewers, plus the router that binds tab
// selection to them.
package controller

import (
	"context"
	"os"

	"openvpn-webui/internal/gateway"
	"openvpn-webui/internal/panel"
)

// Controller fills a pane when its tab is shown.
type Controller interface {
	DisplayContent(ctx context.Context)
}

// Follower is implemented by controllers that refresh themselves
// periodically while visible.
type Follower interface {
	Tick(ctx context.Context)
}

// Env carries the collaborators shared by every controller of a session.
type Env struct {
	Gateway *gateway.Gateway
	// Viewer is the logged-in user name.
	Viewer string
	// ReadFile, when set, replaces os.ReadFile for downloaded archives and
	// whole-file log reads. Log tabs otherwise read only the file tail.
	ReadFile func(name string) ([]byte, error)
	// ServerLog and StatusLog are shown by the log tabs.
	ServerLog string
	StatusLog string
	// LogLines bounds the log tail.
	LogLines int
}

func (e Env) readFile(name string) ([]byte, error) {
	if e.ReadFile != nil {
		return e.ReadFile(name)
	}
	return os.ReadFile(name)
}

func (e Env) client(pane panel.Pane) *gateway.Client {
	return e.Gateway.Bind(pane, e.Viewer)
}
