package webview

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"openvpn-webui/internal/controller"
	"openvpn-webui/internal/gateway"
	"openvpn-webui/internal/panel"
)

const (
	catalogueJSON = `{"protocol":["udp","tcp"],"device":["tun","tap"],"loglevel":["3"],"DNS_server":["none"],"gateway":["eth0"],"users":["alice","bob"]}`
	settingsJSON  = `{"port":1194,"protocol":"udp","deviceovpn":"tun","compression":true,"extra_options":[],"loglevel":"3","vpn_network":"10.8.0.0","vpn_mask":"255.255.255.0","gateway_interface":"eth0","dns_server":"none","dns":[],"dns_domains":[],"wins":[],"public_address":""}`
)

func newTestRunner() *gateway.MockRunner {
	return &gateway.MockRunner{Outputs: map[string][]byte{
		"getopt":                                 []byte(catalogueJSON),
		"get":                                    []byte(settingsJSON),
		"":                                       []byte(`[{"name":"alice","users":["alice"]},{"name":"bob","users":["bob"]}]`),
		`setup {"port":1195}`:                    []byte(""),
		`add {"name":"carol","users":["alice"]}`: []byte(""),
	}}
}

func newTestEnvFunc(t *testing.T, runner *gateway.MockRunner) EnvFunc {
	t.Helper()
	priv, err := gateway.RequireSuperuser(gateway.MethodSudo)
	if err != nil {
		t.Fatalf("RequireSuperuser failed: %v", err)
	}
	gw, err := gateway.New(priv, gateway.DefaultTool, runner)
	if err != nil {
		t.Fatalf("gateway.New failed: %v", err)
	}
	return func(viewer string) controller.Env {
		return controller.Env{Gateway: gw, Viewer: viewer}
	}
}

func newStartedWorkspace(t *testing.T, runner *gateway.MockRunner, viewer string) *Workspace {
	t.Helper()
	ws := NewWorkspace(context.Background(), newTestEnvFunc(t, runner)(viewer))
	ws.Start()
	return ws
}

func button(snap Snapshot, id string) (panel.Button, bool) {
	for _, b := range snap.Buttons {
		if b.ID == id {
			return b, true
		}
	}
	return panel.Button{}, false
}

func TestStartShowsSettings(t *testing.T) {
	ws := newStartedWorkspace(t, newTestRunner(), "root")
	snap := ws.Snapshot()
	if snap.Active != controller.TabSettings || snap.Form == nil {
		t.Fatalf("expected settings form, got %+v", snap)
	}
	if update, ok := button(snap, "update"); !ok || !update.Disabled {
		t.Fatalf("expected disabled update button, got %+v", snap.Buttons)
	}
	if len(snap.Tabs) != 4 {
		t.Fatalf("expected 4 tabs, got %d", len(snap.Tabs))
	}
}

func TestChangeCoercesAndEnablesUpdate(t *testing.T) {
	ws := newStartedWorkspace(t, newTestRunner(), "root")
	if err := ws.Dispatch(Event{Type: EventChange, Param: "port", Value: "1195"}); err != nil {
		t.Fatalf("change failed: %v", err)
	}
	if got := ws.FormData()["port"]; got != float64(1195) {
		t.Fatalf("expected coerced port, got %#v", got)
	}
	if update, _ := button(ws.Snapshot(), "update"); update.Disabled {
		t.Fatalf("expected update enabled after edit")
	}
}

func TestChangeRejectsUnknownAndInvalid(t *testing.T) {
	ws := newStartedWorkspace(t, newTestRunner(), "root")
	err := ws.Dispatch(Event{Type: EventChange, Param: "enable_ipv6", Value: true})
	if !errors.Is(err, panel.ErrUnknownParam) {
		t.Fatalf("expected ErrUnknownParam, got %v", err)
	}
	err = ws.Dispatch(Event{Type: EventChange, Param: "port", Value: "40000"})
	if !errors.Is(err, panel.ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
	if err := ws.Dispatch(Event{Type: "hover"}); !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("expected ErrUnknownEvent, got %v", err)
	}
}

func TestUpdateConfirmationFlow(t *testing.T) {
	runner := newTestRunner()
	ws := newStartedWorkspace(t, runner, "root")
	_ = ws.Dispatch(Event{Type: EventChange, Param: "port", Value: 1195})
	if err := ws.Dispatch(Event{Type: EventClick, Target: "update"}); err != nil {
		t.Fatalf("click failed: %v", err)
	}
	confirm := ws.Snapshot().Confirm
	if confirm == nil {
		t.Fatalf("expected a confirmation")
	}
	if err := ws.Dispatch(Event{Type: EventConfirm, ID: confirm.ID + 1, Answer: true}); !errors.Is(err, ErrStaleDialog) {
		t.Fatalf("expected ErrStaleDialog, got %v", err)
	}
	if err := ws.Dispatch(Event{Type: EventConfirm, ID: confirm.ID, Answer: true}); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	found := false
	for _, call := range runner.Subcommands() {
		found = found || call == `setup {"port":1195}`
	}
	if !found {
		t.Fatalf("expected setup call, got %v", runner.Subcommands())
	}
	snap := ws.Snapshot()
	if snap.Confirm != nil || snap.Busy != "" {
		t.Fatalf("expected confirmation closed and busy cleared, got %+v", snap)
	}
}

func TestClicksIgnoredWhileBusy(t *testing.T) {
	ws := newStartedWorkspace(t, newTestRunner(), "root")
	_ = ws.Dispatch(Event{Type: EventChange, Param: "port", Value: 1195})
	ws.Busy("Updating settings...")
	if err := ws.Dispatch(Event{Type: EventClick, Target: "update"}); err != nil {
		t.Fatalf("click failed: %v", err)
	}
	if ws.Snapshot().Confirm != nil {
		t.Fatalf("expected click to be ignored while busy")
	}
}

func TestCertificateDialogFlow(t *testing.T) {
	runner := newTestRunner()
	ws := newStartedWorkspace(t, runner, "root")
	if err := ws.SelectTab(controller.TabCertificates); err != nil {
		t.Fatalf("SelectTab failed: %v", err)
	}
	if err := ws.SelectTab("nope"); err == nil {
		t.Fatalf("expected unknown tab error")
	}
	snap := ws.Snapshot()
	if snap.Table == nil || len(snap.Table.Rows) != 2 {
		t.Fatalf("expected certificate table, got %+v", snap.Table)
	}

	if err := ws.Dispatch(Event{Type: EventClick, Target: "add"}); err != nil {
		t.Fatalf("click failed: %v", err)
	}
	dialog := ws.Snapshot().Dialog
	if dialog == nil {
		t.Fatalf("expected dialog")
	}
	err := ws.Dispatch(Event{Type: EventDialog, ID: dialog.ID, Data: map[string]any{"users": []any{"mallory"}}})
	if !errors.Is(err, panel.ErrInvalidValue) {
		t.Fatalf("expected invalid user to be rejected, got %v", err)
	}
	err = ws.Dispatch(Event{Type: EventDialog, ID: dialog.ID, Data: map[string]any{"name": "carol", "users": []any{"alice"}}})
	if err != nil {
		t.Fatalf("dialog failed: %v", err)
	}
	confirm := ws.Snapshot().Confirm
	if confirm == nil || confirm.Title != "Add/ edit certificate carol" {
		t.Fatalf("unexpected confirmation %+v", confirm)
	}
	if err := ws.Dispatch(Event{Type: EventConfirm, ID: confirm.ID, Answer: true}); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	found := false
	for _, call := range runner.Subcommands() {
		found = found || call == `add {"name":"carol","users":["alice"]}`
	}
	if !found {
		t.Fatalf("expected add call, got %v", runner.Subcommands())
	}
}

func TestForbiddenActionNotifiesAndDismisses(t *testing.T) {
	runner := newTestRunner()
	ws := newStartedWorkspace(t, runner, "alice")
	_ = ws.SelectTab(controller.TabCertificates)
	before := len(runner.Calls)

	if err := ws.Dispatch(Event{Type: EventAction, Name: "delete", Index: 1}); err != nil {
		t.Fatalf("action failed: %v", err)
	}
	if len(runner.Calls) != before {
		t.Fatalf("expected no gateway call")
	}
	snap := ws.Snapshot()
	if len(snap.Notices) != 1 {
		t.Fatalf("expected one notice, got %+v", snap.Notices)
	}
	if err := ws.Dispatch(Event{Type: EventDismiss, Index: 0}); err != nil {
		t.Fatalf("dismiss failed: %v", err)
	}
	if len(ws.Snapshot().Notices) != 0 {
		t.Fatalf("expected notice dismissed")
	}
	if err := ws.Dispatch(Event{Type: EventAction, Name: "delete", Index: 9}); !errors.Is(err, ErrNoTarget) {
		t.Fatalf("expected ErrNoTarget, got %v", err)
	}
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	ws := newStartedWorkspace(t, newTestRunner(), "root")
	ch, cancel := ws.Subscribe()
	defer cancel()

	ws.Notify(panel.Notice{Kind: panel.NoticeInfo, Title: "hello"})
	select {
	case data := <-ch:
		var snap Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			t.Fatalf("decode snapshot: %v", err)
		}
		if len(snap.Notices) != 1 || snap.Notices[0].Title != "hello" {
			t.Fatalf("unexpected snapshot notices %+v", snap.Notices)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a snapshot")
	}
}

func TestHubReusesWorkspacePerSession(t *testing.T) {
	hub := NewHub(context.Background(), newTestEnvFunc(t, newTestRunner()))
	first := hub.Workspace("s1", "root")
	if hub.Workspace("s1", "root") != first {
		t.Fatalf("expected same workspace for the same session")
	}
	if hub.Workspace("s1", "alice") == first {
		t.Fatalf("expected a new workspace for a different viewer")
	}
	hub.Workspace("s2", "root")
	if hub.Len() != 2 {
		t.Fatalf("expected 2 workspaces, got %d", hub.Len())
	}
	hub.Drop("s1")
	if hub.Len() != 1 {
		t.Fatalf("expected 1 workspace after drop, got %d", hub.Len())
	}
}

func TestRowClicksIgnoredWhileBusy(t *testing.T) {
	ws := newStartedWorkspace(t, newTestRunner(), "root")
	if err := ws.SelectTab(controller.TabCertificates); err != nil {
		t.Fatalf("SelectTab failed: %v", err)
	}
	ws.Busy("Deleting certificate...")
	if err := ws.Dispatch(Event{Type: EventRow, Index: 0}); err != nil {
		t.Fatalf("row click failed: %v", err)
	}
	if ws.Snapshot().Dialog != nil {
		t.Fatalf("expected row click to be ignored while busy")
	}

	ws.Busy("")
	if err := ws.Dispatch(Event{Type: EventRow, Index: 0}); err != nil {
		t.Fatalf("row click failed: %v", err)
	}
	if ws.Snapshot().Dialog == nil {
		t.Fatalf("expected edit dialog once idle")
	}
}

func TestHubPrunesInvalidSessions(t *testing.T) {
	hub := NewHub(context.Background(), newTestEnvFunc(t, newTestRunner()))
	hub.Workspace("live", "root")
	hub.Workspace("expired", "alice")
	hub.Workspace("gone", "bob")

	dropped := hub.Prune(func(session string) bool { return session == "live" })
	if dropped != 2 || hub.Len() != 1 {
		t.Fatalf("expected 2 dropped and 1 left, got %d and %d", dropped, hub.Len())
	}
	if hub.Prune(func(string) bool { return true }) != 0 || hub.Len() != 1 {
		t.Fatalf("expected valid sessions to be kept")
	}
}
