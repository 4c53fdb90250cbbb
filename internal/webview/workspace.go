// Package webview implements the panel pane for browsers. Each login session
// owns a Workspace that holds the rendered view, applies posted events to the
// controllers and pushes JSON snapshots to SSE watchers.
package webview

import (
	"context"
	"encoding/json"
	"sync"

	"openvpn-webui/internal/controller"
	"openvpn-webui/internal/diff"
	"openvpn-webui/internal/panel"
)

// DialogState is the open edit dialog.
type DialogState struct {
	ID     uint64        `json:"id"`
	Title  string        `json:"title"`
	Fields []panel.Field `json:"fields"`
}

// ConfirmState is the open yes/no question.
type ConfirmState struct {
	ID    uint64 `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// DownloadState is the most recent file offered for saving. Clients save
// each ID once.
type DownloadState struct {
	ID uint64 `json:"id"`
	panel.Download
}

// Snapshot is the JSON view of a workspace.
type Snapshot struct {
	Revision uint64           `json:"revision"`
	Viewer   string           `json:"viewer"`
	Tabs     []controller.Tab `json:"tabs"`
	Active   string           `json:"active"`
	Title    string           `json:"title"`
	Status   string           `json:"status,omitempty"`
	Buttons  []panel.Button   `json:"buttons"`
	Form     *panel.Form      `json:"form,omitempty"`
	Table    *panel.Table     `json:"table,omitempty"`
	Log      *panel.LogView   `json:"log,omitempty"`
	Dialog   *DialogState     `json:"dialog,omitempty"`
	Confirm  *ConfirmState    `json:"confirm,omitempty"`
	Notices  []panel.Notice   `json:"notices"`
	Busy     string           `json:"busy,omitempty"`
	Download *DownloadState   `json:"download,omitempty"`
}

// Workspace is the server side of one browser session. It implements
// panel.Pane.
type Workspace struct {
	viewer string
	ctx    context.Context
	router *controller.Router

	// dispatchMu serializes events, tab switches and ticks.
	dispatchMu sync.Mutex

	mu       sync.Mutex
	active   string
	revision uint64
	nextID   uint64
	view     panel.View
	values   diff.Record
	dialog   *panel.Dialog
	dialogID uint64
	confirm  *ConfirmState
	onYes    func()
	notices  []panel.Notice
	busy     string
	download *DownloadState

	watchersMu sync.Mutex
	watchers   map[chan []byte]struct{}
}

// NewWorkspace creates a workspace whose controllers run with env. ctx bounds
// every gateway call made on behalf of the workspace.
func NewWorkspace(ctx context.Context, env controller.Env) *Workspace {
	w := &Workspace{
		viewer:   env.Viewer,
		ctx:      ctx,
		values:   diff.Record{},
		notices:  []panel.Notice{},
		watchers: make(map[chan []byte]struct{}),
	}
	w.router = controller.NewRouter(env, w)
	return w
}

// Viewer returns the user the workspace belongs to.
func (w *Workspace) Viewer() string {
	return w.viewer
}

// Start shows the first tab.
func (w *Workspace) Start() {
	w.dispatchMu.Lock()
	defer w.dispatchMu.Unlock()
	w.router.SelectFirst(w.ctx)
	w.syncActive()
}

// SelectTab switches to tab id, dropping any open dialog.
func (w *Workspace) SelectTab(id string) error {
	w.dispatchMu.Lock()
	defer w.dispatchMu.Unlock()
	w.mu.Lock()
	w.dialog, w.confirm, w.onYes = nil, nil, nil
	w.mu.Unlock()
	err := w.router.Select(w.ctx, id)
	w.syncActive()
	return err
}

// Tick forwards a background tick to the active controller. It is skipped
// while an event is being handled.
func (w *Workspace) Tick() {
	if !w.dispatchMu.TryLock() {
		return
	}
	defer w.dispatchMu.Unlock()
	w.router.Tick(w.ctx)
}

// Snapshot returns the current view.
func (w *Workspace) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Workspace) snapshotLocked() Snapshot {
	snap := Snapshot{
		Revision: w.revision,
		Viewer:   w.viewer,
		Tabs:     controller.Tabs(),
		Active:   w.active,
		Title:    w.view.Title,
		Status:   w.view.Status,
		Buttons:  append([]panel.Button{}, w.view.Buttons...),
		Table:    w.view.Table,
		Log:      w.view.Log,
		Confirm:  w.confirm,
		Notices:  append([]panel.Notice{}, w.notices...),
		Busy:     w.busy,
		Download: w.download,
	}
	if w.view.Form != nil {
		fields := make([]panel.Field, len(w.view.Form.Fields))
		for i, f := range w.view.Form.Fields {
			if v, ok := w.values[f.Param]; ok {
				f.Value = v
			}
			fields[i] = f
		}
		snap.Form = &panel.Form{Fields: fields}
	}
	if w.dialog != nil {
		snap.Dialog = &DialogState{ID: w.dialogID, Title: w.dialog.Title, Fields: w.dialog.Fields}
	}
	return snap
}

// changedLocked bumps the revision and encodes the new snapshot. Callers
// must hold mu.
func (w *Workspace) changedLocked() []byte {
	w.revision++
	data, err := json.Marshal(w.snapshotLocked())
	if err != nil {
		return nil
	}
	return data
}

func (w *Workspace) update(fn func()) {
	w.mu.Lock()
	fn()
	data := w.changedLocked()
	w.mu.Unlock()
	w.send(data)
}

// syncActive publishes the router's tab. Callers must hold dispatchMu.
func (w *Workspace) syncActive() {
	active := w.router.Active()
	w.update(func() {
		w.active = active
	})
}

// Render implements panel.Pane.
func (w *Workspace) Render(view panel.View) {
	w.update(func() {
		w.view = view
		w.busy = ""
		if view.Form != nil {
			w.values = diff.Record{}
			for _, f := range view.Form.Fields {
				w.values[f.Param] = f.Value
			}
		}
	})
}

// FormData implements panel.Pane.
func (w *Workspace) FormData() diff.Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.values.Clone()
}

// SetButtonDisabled implements panel.Pane.
func (w *Workspace) SetButtonDisabled(id string, disabled bool) {
	w.update(func() {
		buttons := append([]panel.Button{}, w.view.Buttons...)
		for i := range buttons {
			if buttons[i].ID == id {
				buttons[i].Disabled = disabled
			}
		}
		w.view.Buttons = buttons
	})
}

// OpenDialog implements panel.Pane.
func (w *Workspace) OpenDialog(dialog panel.Dialog) {
	w.update(func() {
		w.nextID++
		w.dialog = &dialog
		w.dialogID = w.nextID
	})
}

// Confirm implements panel.Pane.
func (w *Workspace) Confirm(title, text string, onYes func()) {
	w.update(func() {
		w.nextID++
		w.confirm = &ConfirmState{ID: w.nextID, Title: title, Text: text}
		w.onYes = onYes
	})
}

// Notify implements panel.Pane.
func (w *Workspace) Notify(notice panel.Notice) {
	w.update(func() {
		w.notices = append(w.notices, notice)
	})
}

// Busy implements panel.Pane.
func (w *Workspace) Busy(text string) {
	w.update(func() {
		w.busy = text
	})
}

// SaveFile implements panel.Pane.
func (w *Workspace) SaveFile(download panel.Download) {
	w.update(func() {
		w.nextID++
		w.download = &DownloadState{ID: w.nextID, Download: download}
	})
}
