package controller

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"

	"openvpn-webui/internal/i18n"
	"openvpn-webui/internal/panel"
)

const (
	refreshButton = "refresh"
	followButton  = "follow"

	// DefaultLogLines is the tail length when Env.LogLines is unset.
	DefaultLogLines = 200

	DefaultServerLog = "/var/log/openvpn.log"
	DefaultStatusLog = "/var/log/openvpn-status.log"
)

// tailChunk is the block size read backwards from the end of a log file.
var tailChunk int64 = 16 << 10

// Logs shows the tail of one OpenVPN log file.
type Logs struct {
	pane    panel.Pane
	titleID string
	path    string
	lines   int
	read    func(path string, n int) ([]string, error)

	ctx    context.Context
	follow bool
}

// NewServerLog creates the controller for the OpenVPN server log.
func NewServerLog(env Env, pane panel.Pane) *Logs {
	return newLogs(env, pane, "logs.title.log", orDefault(env.ServerLog, DefaultServerLog))
}

// NewStatusLog creates the controller for the OpenVPN status file.
func NewStatusLog(env Env, pane panel.Pane) *Logs {
	return newLogs(env, pane, "logs.title.status", orDefault(env.StatusLog, DefaultStatusLog))
}

func newLogs(env Env, pane panel.Pane, titleID, path string) *Logs {
	lines := env.LogLines
	if lines <= 0 {
		lines = DefaultLogLines
	}
	read := tailFile
	if env.ReadFile != nil {
		read = func(path string, n int) ([]string, error) {
			content, err := env.ReadFile(path)
			if err != nil {
				return nil, err
			}
			return tail(content, n), nil
		}
	}
	return &Logs{
		pane:    pane,
		titleID: titleID,
		path:    path,
		lines:   lines,
		read:    read,
		follow:  true,
	}
}

// DisplayContent renders the current tail of the file.
func (l *Logs) DisplayContent(ctx context.Context) {
	l.ctx = ctx
	l.render()
}

// Tick re-reads the file while follow mode is on.
func (l *Logs) Tick(context.Context) {
	if l.follow {
		l.render()
	}
}

// Following reports whether follow mode is on.
func (l *Logs) Following() bool {
	return l.follow
}

func (l *Logs) toggleFollow() {
	l.follow = !l.follow
	l.render()
}

func (l *Logs) render() {
	followLabel := i18n.T("logs.follow")
	if l.follow {
		followLabel = i18n.T("logs.unfollow")
	}
	view := panel.View{
		Title: i18n.T(l.titleID),
		Buttons: []panel.Button{
			{ID: refreshButton, Label: i18n.T("logs.refresh"), OnClick: l.render},
			{ID: followButton, Label: followLabel, OnClick: l.toggleFollow},
		},
		Log: &panel.LogView{Path: l.path, Lines: []string{}, Follow: l.follow},
	}
	lines, err := l.read(l.path, l.lines)
	if err != nil {
		view.Status = err.Error()
	} else {
		view.Log.Lines = lines
	}
	l.pane.Render(view)
}

// tailFile returns the last n lines of the file at path. It reads backwards
// from the end and stops once the window holds n complete lines.
func tailFile(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	offset := info.Size()
	var window []byte
	for offset > 0 {
		size := min(tailChunk, offset)
		offset -= size
		block := make([]byte, size, size+int64(len(window)))
		if _, err := f.ReadAt(block, offset); err != nil && err != io.EOF {
			return nil, err
		}
		window = append(block, window...)
		if bytes.Count(bytes.TrimRight(window, "\r\n"), []byte("\n")) >= n {
			break
		}
	}
	return tail(window, n), nil
}

// tail returns the last n lines of content without the trailing newline.
func tail(content []byte, n int) []string {
	content = bytes.TrimRight(content, "\r\n")
	if len(content) == 0 {
		return []string{}
	}
	lines := strings.Split(string(content), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
