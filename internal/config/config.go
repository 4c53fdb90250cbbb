// Package config loads the panel configuration from defaults, an optional
// openvpn-webui.yaml, OPENVPN_WEBUI_* environment variables and command
// line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	fileName  = "openvpn-webui"
	envPrefix = "OPENVPN_WEBUI"
	// SystemDir is searched for openvpn-webui.yaml before the user config
	// directory and the working directory.
	SystemDir = "/etc/openvpn-webui"
)

// Config is the complete runtime configuration.
type Config struct {
	Listen          string `mapstructure:"listen"`
	ListenInterface string `mapstructure:"listen_interface"`
	Language        string `mapstructure:"language"`
	Database        string `mapstructure:"database"`
	Tool            string `mapstructure:"tool"`
	Privilege       string `mapstructure:"privilege"`

	Logs struct {
		Server         string        `mapstructure:"server"`
		Status         string        `mapstructure:"status"`
		Lines          int           `mapstructure:"lines"`
		FollowInterval time.Duration `mapstructure:"follow_interval"`
	} `mapstructure:"logs"`

	Diagnostics struct {
		Enabled bool   `mapstructure:"enabled"`
		Level   string `mapstructure:"level"`
		Path    string `mapstructure:"path"`
	} `mapstructure:"diagnostics"`

	Auth struct {
		SessionTTL    time.Duration `mapstructure:"session_ttl"`
		TrustedHeader string        `mapstructure:"trusted_header"`
	} `mapstructure:"auth"`
}

// Defaults returns the built-in values keyed by their dotted config key.
func Defaults() map[string]any {
	return map[string]any{
		"listen":               "127.0.0.1:9080",
		"listen_interface":     "",
		"language":             "en",
		"database":             "/var/lib/openvpn-webui/openvpn-webui.db",
		"tool":                 "/opt/openvpn/openvpn-cli.py",
		"privilege":            "sudo",
		"logs.server":          "/var/log/openvpn.log",
		"logs.status":          "/var/log/openvpn-status.log",
		"logs.lines":           200,
		"logs.follow_interval": 2 * time.Second,
		"diagnostics.enabled":  false,
		"diagnostics.level":    "info",
		"diagnostics.path":     "/var/log/openvpn-webui/diagnostics.log",
		"auth.session_ttl":     30 * 24 * time.Hour,
		"auth.trusted_header":  "",
	}
}

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"listen":           "listen",
	"listen-interface": "listen_interface",
	"lang":             "language",
	"database":         "database",
	"tool":             "tool",
	"privilege":        "privilege",
	"log-lines":        "logs.lines",
	"diagnostics":      "diagnostics.enabled",
	"trusted-header":   "auth.trusted_header",
}

// Load reads the configuration. explicitFile, when set, replaces the search
// path and must exist. Flags of cmd that the user set override every other
// source.
func Load(cmd *cobra.Command, explicitFile string) (Config, error) {
	var c Config
	v := viper.New()

	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	v.SetConfigName(fileName)
	v.SetConfigType("yaml")
	if explicitFile != "" {
		v.SetConfigFile(explicitFile)
	} else {
		v.AddConfigPath(SystemDir)
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, fileName))
		}
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicitFile != "" || !errors.As(err, &notFound) {
			return c, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		for name, key := range flagKeys {
			if flag := cmd.Flags().Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return c, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decode config: %w", err)
	}
	return c, nil
}

// Used returns the config file Load would read, or "" when none exists.
func Used(explicitFile string) string {
	if explicitFile != "" {
		return explicitFile
	}
	dirs := []string{SystemDir}
	if dir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(dir, fileName))
	}
	dirs = append(dirs, ".")
	for _, dir := range dirs {
		path := filepath.Join(dir, fileName+".yaml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// WriteDefault writes the built-in configuration as YAML to path. An existing
// file is left alone unless overwrite is set.
func WriteDefault(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	data, err := yaml.Marshal(nest(Defaults()))
	if err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	header := []byte("# openvpn-webui configuration. Every key can also be set as OPENVPN_WEBUI_<KEY>.\n")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(header, data...), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// nest turns dotted keys into nested maps. Durations are written in their
// text form so the file reads back through viper unchanged.
func nest(flat map[string]any) map[string]any {
	keys := make([]string, 0, len(flat))
	for key := range flat {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := map[string]any{}
	for _, key := range keys {
		value := flat[key]
		if d, ok := value.(time.Duration); ok {
			value = d.String()
		}
		parts := strings.Split(key, ".")
		node := out
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = value
	}
	return out
}
