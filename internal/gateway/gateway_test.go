package gateway

import (
	"context"
	"errors"
	"os/exec"
	"reflect"
	"strings"
	"testing"

	"openvpn-webui/internal/panel"
)

type recordingNotifier struct {
	notices []panel.Notice
}

func (r *recordingNotifier) Notify(notice panel.Notice) {
	r.notices = append(r.notices, notice)
}

func newTestGateway(t *testing.T, runner CommandRunner, observers ...Observer) *Gateway {
	t.Helper()
	priv, err := requireSuperuser(MethodSudo, 1000)
	if err != nil {
		t.Fatalf("requireSuperuser failed: %v", err)
	}
	gw, err := New(priv, DefaultTool, runner, observers...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return gw
}

func TestNewRequiresPrivilege(t *testing.T) {
	if _, err := New(Privilege{}, DefaultTool, &MockRunner{}); err == nil {
		t.Fatalf("expected zero privilege to be rejected")
	}
}

func TestRequireSuperuser(t *testing.T) {
	priv, err := requireSuperuser("sudo", 1000)
	if err != nil || priv.Method() != MethodSudo {
		t.Fatalf("expected sudo privilege, got %+v (%v)", priv, err)
	}
	priv, err = requireSuperuser("sudo", 0)
	if err != nil || priv.Method() != MethodNone {
		t.Fatalf("expected root to skip elevation, got %+v (%v)", priv, err)
	}
	if _, err := requireSuperuser("none", 1000); err == nil {
		t.Fatalf("expected none to be rejected for unprivileged users")
	}
	if _, err := requireSuperuser("doas", 1000); err == nil {
		t.Fatalf("expected unsupported method error")
	}
}

func TestCallBuildsElevatedArgvWithPayload(t *testing.T) {
	runner := &MockRunner{Outputs: map[string][]byte{`setup {"port":1195}`: []byte("ok")}}
	gw := newTestGateway(t, runner)

	out, err := gw.Call(context.Background(), "root", []string{SubSetup}, map[string]any{"port": 1195})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if out != "ok" {
		t.Fatalf("unexpected output %q", out)
	}
	want := []string{"sudo", "-n", "--", DefaultTool, "setup", `{"port":1195}`}
	if !reflect.DeepEqual(runner.Calls[0], want) {
		t.Fatalf("unexpected argv %#v", runner.Calls[0])
	}
}

func TestCallOmitsNilPayload(t *testing.T) {
	runner := &MockRunner{Outputs: map[string][]byte{"get": []byte("{}")}}
	gw := newTestGateway(t, runner)
	if _, err := gw.Call(context.Background(), "", []string{SubGet}, nil); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if got := runner.Calls[0]; got[len(got)-1] != "get" {
		t.Fatalf("expected no payload argument, got %#v", got)
	}
}

func TestRunSuccessHandsRawOutput(t *testing.T) {
	runner := &MockRunner{Outputs: map[string][]byte{"": []byte(`[{"name":"bob","users":[]}]`)}}
	notifier := &recordingNotifier{}
	client := newTestGateway(t, runner).Bind(notifier, "alice")

	var got string
	client.Run(context.Background(), func(result string) { got = result }, nil, nil)
	if got != `[{"name":"bob","users":[]}]` {
		t.Fatalf("unexpected result %q", got)
	}
	if len(notifier.notices) != 0 {
		t.Fatalf("expected no notices, got %+v", notifier.notices)
	}
}

func TestRunFailureHandsEmptyListAndNotifies(t *testing.T) {
	runner := &MockRunner{
		Outputs: map[string][]byte{"get": []byte("Error parsing xml file\n")},
		Errors:  map[string]error{"get": errors.New("exit status 1")},
	}
	notifier := &recordingNotifier{}
	client := newTestGateway(t, runner).Bind(notifier, "alice")

	called := 0
	var got string
	client.Run(context.Background(), func(result string) {
		called++
		got = result
	}, []string{SubGet}, nil)

	if called != 1 {
		t.Fatalf("expected completion exactly once, got %d", called)
	}
	if got != EmptyResult {
		t.Fatalf("expected %q, got %q", EmptyResult, got)
	}
	if len(notifier.notices) != 1 {
		t.Fatalf("expected one notice, got %d", len(notifier.notices))
	}
	notice := notifier.notices[0]
	if notice.Kind != panel.NoticeError || notice.Title != "OpenVPN command failed" {
		t.Fatalf("unexpected notice %+v", notice)
	}
	if !strings.Contains(notice.Message, "Error parsing xml file") {
		t.Fatalf("expected command output in message, got %q", notice.Message)
	}
	if notice.Problem != "internal-error" {
		t.Fatalf("unexpected problem code %q", notice.Problem)
	}
}

func TestRunFailureWithoutOutputPointsAtLog(t *testing.T) {
	runner := &MockRunner{Errors: map[string]error{"get": exec.ErrNotFound}}
	notifier := &recordingNotifier{}
	newTestGateway(t, runner).Bind(notifier, "").Run(context.Background(), nil, []string{SubGet}, nil)

	if len(notifier.notices) != 1 {
		t.Fatalf("expected one notice, got %d", len(notifier.notices))
	}
	if !strings.Contains(notifier.notices[0].Message, "Please check the log file") {
		t.Fatalf("expected log hint, got %q", notifier.notices[0].Message)
	}
	if notifier.notices[0].Problem != "not-found" {
		t.Fatalf("unexpected problem %q", notifier.notices[0].Problem)
	}
}

func TestObserversSeeEveryInvocation(t *testing.T) {
	runner := &MockRunner{
		Outputs: map[string][]byte{"getopt": []byte("{}")},
		Errors:  map[string]error{`del {"name":"x"}`: errors.New("boom")},
	}
	var seen []Invocation
	gw := newTestGateway(t, runner, ObserverFunc(func(inv Invocation) { seen = append(seen, inv) }))

	_, _ = gw.Call(context.Background(), "alice", []string{SubGetOpt}, nil)
	_, _ = gw.Call(context.Background(), "alice", []string{SubDel}, map[string]string{"name": "x"})
	_, _ = gw.Call(context.Background(), "alice", nil, nil)

	if len(seen) != 3 {
		t.Fatalf("expected 3 invocations, got %d", len(seen))
	}
	if seen[0].Subcommand != "getopt" || !seen[0].OK() || seen[0].Viewer != "alice" {
		t.Fatalf("unexpected first invocation %+v", seen[0])
	}
	if seen[1].Subcommand != "del" || seen[1].OK() {
		t.Fatalf("expected failed del, got %+v", seen[1])
	}
	if seen[2].Subcommand != "list" {
		t.Fatalf("expected list subcommand, got %q", seen[2].Subcommand)
	}
}
