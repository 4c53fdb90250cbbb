// Package gateway runs the privileged OpenVPN command line tool and
// normalizes its success and failure paths for the panel controllers.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"openvpn-webui/internal/i18n"
	"openvpn-webui/internal/panel"
)

const (
	// DefaultTool is the location the OpenVPN tool installs itself to.
	DefaultTool = "/opt/openvpn/openvpn-cli.py"
	// ToolName is the base name of DefaultTool.
	ToolName = "openvpn-cli.py"
	// EmptyResult is handed to completions when a call fails.
	EmptyResult = "[]"
)

// Subcommands understood by the tool. Listing certificates takes none.
const (
	SubGetOpt   = "getopt"
	SubGet      = "get"
	SubSetup    = "setup"
	SubAdd      = "add"
	SubDel      = "del"
	SubDownload = "download"
)

// Invocation describes one finished call for observers.
type Invocation struct {
	Subcommand string
	Viewer     string
	Started    time.Time
	Duration   time.Duration
	ExitCode   int
	Err        error
	Output     string
}

// OK reports whether the call succeeded.
func (i Invocation) OK() bool {
	return i.Err == nil
}

// Observer is notified after every call.
type Observer interface {
	ObserveInvocation(inv Invocation)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Invocation)

func (f ObserverFunc) ObserveInvocation(inv Invocation) { f(inv) }

// Notifier receives the failure notice of Client.Run.
type Notifier interface {
	Notify(notice panel.Notice)
}

// CommandError is returned by Call when the tool fails.
type CommandError struct {
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s %s: %v", ToolName, strings.Join(e.Args, " "), e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Problem returns a short machine readable failure code.
func (e *CommandError) Problem() string {
	switch {
	case e.ExitCode > 0:
		return "exit-" + strconv.Itoa(e.ExitCode)
	case errors.Is(e.Err, exec.ErrNotFound):
		return "not-found"
	case errors.Is(e.Err, context.Canceled), errors.Is(e.Err, context.DeadlineExceeded):
		return "terminated"
	default:
		return "internal-error"
	}
}

// Gateway executes the OpenVPN tool with elevated privileges.
type Gateway struct {
	tool      string
	privilege Privilege
	runner    CommandRunner
	observers []Observer
	now       func() time.Time
}

// New creates a gateway for tool. The privilege token is mandatory.
func New(privilege Privilege, tool string, runner CommandRunner, observers ...Observer) (*Gateway, error) {
	if !privilege.valid() {
		return nil, errors.New("gateway requires a superuser privilege")
	}
	tool = strings.TrimSpace(tool)
	if tool == "" {
		tool = DefaultTool
	}
	if runner == nil {
		runner = execRunner{}
	}
	return &Gateway{
		tool:      tool,
		privilege: privilege,
		runner:    runner,
		observers: observers,
		now:       time.Now,
	}, nil
}

// Tool returns the configured tool path.
func (g *Gateway) Tool() string {
	return g.tool
}

// Call runs the tool with args followed by the JSON encoding of payload
// (omitted when payload is nil) and returns the merged output.
func (g *Gateway) Call(ctx context.Context, viewer string, args []string, payload any) (string, error) {
	argv := append([]string(nil), args...)
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("encode %s payload: %w", subcommandOf(args), err)
		}
		argv = append(argv, string(encoded))
	}

	name, cmdArgs := g.privilege.wrap(g.tool, argv)
	started := g.now()
	out, runErr := g.runner.CombinedOutput(ctx, name, cmdArgs...)
	inv := Invocation{
		Subcommand: subcommandOf(args),
		Viewer:     viewer,
		Started:    started,
		Duration:   g.now().Sub(started),
		Output:     string(out),
	}

	var err error
	if runErr != nil {
		cmdErr := &CommandError{Args: argv, Output: strings.TrimSpace(string(out)), Err: runErr}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			cmdErr.ExitCode = exitErr.ExitCode()
		}
		inv.ExitCode = cmdErr.ExitCode
		err = cmdErr
	}
	inv.Err = err
	for _, observer := range g.observers {
		observer.ObserveInvocation(inv)
	}
	return string(out), err
}

// Bind returns a client whose failures are reported to notifier.
func (g *Gateway) Bind(notifier Notifier, viewer string) *Client {
	return &Client{gateway: g, notifier: notifier, viewer: viewer}
}

// Client runs calls on behalf of one pane and viewer.
type Client struct {
	gateway  *Gateway
	notifier Notifier
	viewer   string
}

// Run calls the tool and always hands a result to onComplete: the raw output
// on success, EmptyResult on failure. Failures are additionally reported to
// the notifier as an error notice.
func (c *Client) Run(ctx context.Context, onComplete func(result string), args []string, payload any) {
	out, err := c.gateway.Call(ctx, c.viewer, args, payload)
	if err != nil {
		if c.notifier != nil {
			c.notifier.Notify(failureNotice(err))
		}
		out = EmptyResult
	}
	if onComplete != nil {
		onComplete(out)
	}
}

func failureNotice(err error) panel.Notice {
	notice := panel.Notice{
		Kind:  panel.NoticeError,
		Title: i18n.T("gateway.failed.title"),
	}
	detail := ""
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		notice.Problem = cmdErr.Problem()
		detail = cmdErr.Output
		err = cmdErr.Err
	}
	if detail == "" {
		detail = i18n.T("gateway.failed.check_log", map[string]any{"Error": err.Error()})
	}
	notice.Message = i18n.T("gateway.failed.message", map[string]any{"Detail": detail})
	return notice
}

func subcommandOf(args []string) string {
	if len(args) == 0 {
		return "list"
	}
	return args[0]
}
