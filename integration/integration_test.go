//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeTool answers the OpenVPN tool subcommands and records every call.
const fakeTool = `#!/bin/sh
echo "$*" >> "$(dirname "$0")/calls.log"
case "$1" in
  getopt) echo '{"protocol":["udp","tcp"],"device":["tun"],"loglevel":["3"],"DNS_server":["none"],"gateway":["eth0"],"users":["root"]}' ;;
  get) echo '{"port":1194,"protocol":"udp","deviceovpn":"tun","compression":true,"extra_options":[],"loglevel":"3","vpn_network":"10.8.0.0","vpn_mask":"255.255.255.0","gateway_interface":"eth0","dns_server":"none","dns":[],"dns_domains":[],"wins":[],"public_address":""}' ;;
  setup) ;;
  "") echo '[]' ;;
  *) echo "unknown subcommand $1" >&2; exit 2 ;;
esac
`

type snapshot struct {
	Active  string `json:"active"`
	Buttons []struct {
		ID       string `json:"id"`
		Disabled bool   `json:"disabled"`
	} `json:"buttons"`
	Confirm *struct {
		ID uint64 `json:"id"`
	} `json:"confirm"`
}

func TestIntegrationSettingsUpdate(t *testing.T) {
	if os.Getenv("OPENVPNWEBUI_RUN_INTEGRATION") != "1" {
		t.Skip("set OPENVPNWEBUI_RUN_INTEGRATION=1 to run integration tests")
	}
	if os.Geteuid() != 0 {
		t.Skip("integration test requires root privileges")
	}

	binaryPath := strings.TrimSpace(os.Getenv("OPENVPNWEBUI_BIN"))
	if binaryPath == "" {
		binaryPath = filepath.Clean("./openvpn-webui")
	}
	if _, err := os.Stat(binaryPath); err != nil {
		t.Fatalf("openvpn-webui binary not found at %s: %v", binaryPath, err)
	}

	dir := t.TempDir()
	toolPath := filepath.Join(dir, "openvpn-cli.py")
	if err := os.WriteFile(toolPath, []byte(fakeTool), 0o755); err != nil {
		t.Fatalf("write fake tool: %v", err)
	}

	addr, err := freeLocalAddr()
	if err != nil {
		t.Fatalf("failed to choose listen address: %v", err)
	}
	baseURL := "http://" + addr

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.CommandContext(ctx, binaryPath, "serve",
		"--listen", addr,
		"--privilege", "none",
		"--tool", toolPath,
		"--database", filepath.Join(dir, "openvpn-webui.db"),
	)
	cmd.Dir = dir
	var logs bytes.Buffer
	cmd.Stdout = &logs
	cmd.Stderr = &logs
	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start openvpn-webui: %v", err)
	}
	defer func() {
		cancel()
		_ = cmd.Process.Kill()
		_, _ = ioCopyDiscardAndWait(cmd)
		if t.Failed() {
			t.Logf("server logs:\n%s", logs.String())
		}
	}()

	if err := waitForHTTP(baseURL+"/login", 20*time.Second); err != nil {
		t.Fatalf("server did not become ready: %v", err)
	}

	client, err := authenticatedClient(baseURL)
	if err != nil {
		t.Fatalf("failed to authenticate test client: %v", err)
	}

	var snap snapshot
	if err := getJSON(client, baseURL+"/api/view", &snap); err != nil {
		t.Fatalf("view: %v", err)
	}
	if snap.Active != "settings" {
		t.Fatalf("expected settings tab, got %q", snap.Active)
	}

	if err := postEvent(client, baseURL, map[string]any{"type": "change", "param": "port", "value": 1195}, &snap); err != nil {
		t.Fatalf("change: %v", err)
	}
	if err := postEvent(client, baseURL, map[string]any{"type": "click", "target": "update"}, &snap); err != nil {
		t.Fatalf("click: %v", err)
	}
	if snap.Confirm == nil {
		t.Fatalf("expected confirmation after clicking update")
	}
	if err := postEvent(client, baseURL, map[string]any{"type": "confirm", "id": snap.Confirm.ID, "answer": true}, &snap); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	calls, err := os.ReadFile(filepath.Join(dir, "calls.log"))
	if err != nil {
		t.Fatalf("read calls: %v", err)
	}
	if !strings.Contains(string(calls), `setup {"port":1195}`) {
		t.Fatalf("expected setup call with port diff, got:\n%s", calls)
	}
}

func authenticatedClient(baseURL string) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 10 * time.Second, Jar: jar}

	resp, err := client.PostForm(baseURL+"/login", url.Values{"username": {"root"}, "password": {"openvpn"}})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("login failed with status %d", resp.StatusCode)
	}
	return client, nil
}

func getJSON(client *http.Client, endpoint string, out any) error {
	resp, err := client.Get(endpoint)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func postEvent(client *http.Client, baseURL string, event map[string]any, out any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	resp, err := client.Post(baseURL+"/api/events", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event rejected with status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func waitForHTTP(endpoint string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(endpoint)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(250 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for %s", endpoint)
}

func freeLocalAddr() (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	addr := listener.Addr().String()
	if err := listener.Close(); err != nil {
		return "", err
	}
	return addr, nil
}

func ioCopyDiscardAndWait(cmd *exec.Cmd) (int, error) {
	err := cmd.Wait()
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode(), err
	}
	return -1, err
}
