package webview

import (
	"errors"
	"fmt"

	"openvpn-webui/internal/diff"
	"openvpn-webui/internal/panel"
)

// Event types posted by the browser.
const (
	EventChange  = "change"
	EventClick   = "click"
	EventRow     = "row"
	EventAction  = "action"
	EventDialog  = "dialog"
	EventConfirm = "confirm"
	EventDismiss = "dismiss"
	// EventCancel closes the dialog without running its OK handler.
	EventCancel = "cancel"
)

var (
	// ErrUnknownEvent is returned for event types the workspace does not handle.
	ErrUnknownEvent = errors.New("unknown event type")
	// ErrStaleDialog is returned when a dialog or confirmation answer does not
	// match the one currently open.
	ErrStaleDialog = errors.New("dialog is no longer open")
	// ErrNoTarget is returned when an event names a button, row or action the
	// pane does not show.
	ErrNoTarget = errors.New("event target not found")
)

// Event is one user interaction.
type Event struct {
	Type   string         `json:"type"`
	Param  string         `json:"param,omitempty"`
	Value  any            `json:"value,omitempty"`
	Target string         `json:"target,omitempty"`
	Name   string         `json:"name,omitempty"`
	Index  int            `json:"index"`
	ID     uint64         `json:"id,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
	Answer bool           `json:"answer"`
}

// Dispatch applies ev. Events run one at a time; controller callbacks run
// after the view state lock is released so snapshots stay available while a
// gateway call is outstanding.
func (w *Workspace) Dispatch(ev Event) error {
	w.dispatchMu.Lock()
	defer w.dispatchMu.Unlock()

	run, err := w.resolve(ev)
	if err != nil {
		return err
	}
	if run != nil {
		run()
	}
	return nil
}

// resolve validates ev against the current view and returns the callback to
// run, or nil when the event is ignored.
func (w *Workspace) resolve(ev Event) (func(), error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch ev.Type {
	case EventChange:
		return w.resolveChange(ev)
	case EventClick:
		if w.busy != "" {
			return nil, nil
		}
		for _, b := range w.view.Buttons {
			if b.ID == ev.Target {
				if b.Disabled || b.OnClick == nil {
					return nil, nil
				}
				return b.OnClick, nil
			}
		}
		return nil, fmt.Errorf("%w: button %q", ErrNoTarget, ev.Target)
	case EventRow:
		if w.busy != "" {
			return nil, nil
		}
		row, err := w.rowLocked(ev.Index)
		if err != nil || w.view.Table.OnClick == nil {
			return nil, err
		}
		onClick := w.view.Table.OnClick
		return func() { onClick(row) }, nil
	case EventAction:
		if w.busy != "" {
			return nil, nil
		}
		row, err := w.rowLocked(ev.Index)
		if err != nil {
			return nil, err
		}
		for _, action := range w.view.Table.Actions {
			if action.Name == ev.Name && action.Do != nil {
				do := action.Do
				return func() { do(row) }, nil
			}
		}
		return nil, fmt.Errorf("%w: action %q", ErrNoTarget, ev.Name)
	case EventDialog:
		return w.resolveDialog(ev)
	case EventConfirm:
		if w.confirm == nil || w.confirm.ID != ev.ID {
			return nil, ErrStaleDialog
		}
		onYes := w.onYes
		w.confirm, w.onYes = nil, nil
		w.send(w.changedLocked())
		if !ev.Answer || onYes == nil {
			return nil, nil
		}
		return onYes, nil
	case EventCancel:
		if w.dialog == nil || w.dialogID != ev.ID {
			return nil, ErrStaleDialog
		}
		w.dialog = nil
		w.send(w.changedLocked())
		return nil, nil
	case EventDismiss:
		if ev.Index < 0 || ev.Index >= len(w.notices) {
			return nil, fmt.Errorf("%w: notice %d", ErrNoTarget, ev.Index)
		}
		w.notices = append(w.notices[:ev.Index:ev.Index], w.notices[ev.Index+1:]...)
		w.send(w.changedLocked())
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}
}

func (w *Workspace) resolveChange(ev Event) (func(), error) {
	if w.view.Form == nil {
		return nil, fmt.Errorf("%w: %s", panel.ErrUnknownParam, ev.Param)
	}
	field, ok := panel.FindField(w.view.Form.Fields, ev.Param)
	if !ok || field.ReadOnly {
		return nil, fmt.Errorf("%w: %s", panel.ErrUnknownParam, ev.Param)
	}
	value, err := panel.Coerce(field, ev.Value)
	if err != nil {
		return nil, err
	}
	w.values[field.Param] = value
	w.send(w.changedLocked())
	onChange := w.view.Form.OnChange
	if onChange == nil {
		return nil, nil
	}
	return func() { onChange(field.Param, value) }, nil
}

func (w *Workspace) resolveDialog(ev Event) (func(), error) {
	if w.dialog == nil || w.dialogID != ev.ID {
		return nil, ErrStaleDialog
	}
	data := diff.Record{}
	for _, field := range w.dialog.Fields {
		data[field.Param] = field.Value
	}
	for param, raw := range ev.Data {
		field, ok := panel.FindField(w.dialog.Fields, param)
		if !ok || field.ReadOnly {
			return nil, fmt.Errorf("%w: %s", panel.ErrUnknownParam, param)
		}
		value, err := panel.Coerce(field, raw)
		if err != nil {
			return nil, err
		}
		data[param] = value
	}
	onOK := w.dialog.OnOK
	w.dialog = nil
	w.send(w.changedLocked())
	if onOK == nil {
		return nil, nil
	}
	return func() { onOK(data) }, nil
}

func (w *Workspace) rowLocked(index int) (diff.Record, error) {
	if w.view.Table == nil || index < 0 || index >= len(w.view.Table.Rows) {
		return nil, fmt.Errorf("%w: row %d", ErrNoTarget, index)
	}
	return w.view.Table.Rows[index].Clone(), nil
}
