// Package panel describes the UI capability the controllers drive: a pane
// that renders forms, tables and log views, opens dialogs, asks for
// confirmation and shows notices. Any UI layer can implement Pane; the web
// adapter in internal/webview is the production one.
package panel

import "openvpn-webui/internal/diff"

// FieldType selects the widget used for a form field.
type FieldType string

const (
	FieldNumber  FieldType = "number"
	FieldText    FieldType = "text"
	FieldSelect  FieldType = "select"
	FieldBoolean FieldType = "boolean"
	FieldMulti   FieldType = "multi"
	FieldIP      FieldType = "ip"
	FieldMultiIP FieldType = "multiip"
	// FieldChoices is a multi-select over Options.
	FieldChoices FieldType = "choices"
)

// Field is one entry of a form or dialog schema.
type Field struct {
	Param    string    `json:"param"`
	Label    string    `json:"text"`
	Type     FieldType `json:"type"`
	Value    any       `json:"value"`
	Options  []string  `json:"opts,omitempty"`
	Min      *float64  `json:"min,omitempty"`
	Max      *float64  `json:"max,omitempty"`
	Step     float64   `json:"step,omitempty"`
	Comment  string    `json:"comment,omitempty"`
	ReadOnly bool      `json:"readonly,omitempty"`
}

// Form is an inline edit form. OnChange fires after every accepted edit.
type Form struct {
	Fields   []Field                        `json:"fields"`
	OnChange func(param string, value any) `json:"-"`
}

// Button is a pane level control.
type Button struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Disabled bool   `json:"disabled"`
	OnClick  func() `json:"-"`
}

// Column describes one table column.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// RowAction is offered per table row. The action is disabled for rows whose
// DisableKey attribute is false.
type RowAction struct {
	Name       string                 `json:"name"`
	Label      string                 `json:"label"`
	DisableKey string                 `json:"disable,omitempty"`
	Do         func(row diff.Record) `json:"-"`
}

// Table lists records with an optional row click handler.
type Table struct {
	Columns []Column               `json:"columns"`
	Rows    []diff.Record          `json:"rows"`
	Actions []RowAction            `json:"actions,omitempty"`
	OnClick func(row diff.Record) `json:"-"`
}

// Enabled reports whether action may run for row.
func (a RowAction) Enabled(row diff.Record) bool {
	if a.DisableKey == "" {
		return true
	}
	allowed, _ := row[a.DisableKey].(bool)
	return allowed
}

// LogView shows the tail of a log file.
type LogView struct {
	Path   string   `json:"path"`
	Lines  []string `json:"lines"`
	Follow bool     `json:"follow"`
}

// View is the full content of a pane.
type View struct {
	Title   string   `json:"title"`
	Status  string   `json:"status,omitempty"`
	Buttons []Button `json:"buttons,omitempty"`
	Form    *Form    `json:"form,omitempty"`
	Table   *Table   `json:"table,omitempty"`
	Log     *LogView `json:"log,omitempty"`
}

// Dialog is a modal edit dialog.
type Dialog struct {
	Title  string                  `json:"title"`
	Fields []Field                 `json:"fields"`
	OnOK   func(data diff.Record) `json:"-"`
}

// NoticeKind classifies a notice.
type NoticeKind string

const (
	NoticeInfo  NoticeKind = "info"
	NoticeError NoticeKind = "error"
)

// Notice is a modal message box.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	Problem string     `json:"problem,omitempty"`
}

// Download asks the client to save Href (a data: URI) as Filename.
type Download struct {
	Filename string `json:"filename"`
	Href     string `json:"href"`
}

// Pane is the capability a controller renders into.
type Pane interface {
	// Render replaces the pane content and clears the busy indicator.
	Render(view View)
	// FormData returns the current values of the rendered form.
	FormData() diff.Record
	SetButtonDisabled(id string, disabled bool)
	OpenDialog(dialog Dialog)
	Confirm(title, text string, onYes func())
	Notify(notice Notice)
	// Busy shows text as a busy indicator; an empty text hides it.
	Busy(text string)
	SaveFile(download Download)
}
