// Package i18n loads the embedded translation files and localizes the titles,
// labels and notices the panel shows.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

var (
	mu        sync.RWMutex
	bundle    *i18n.Bundle
	localizer *i18n.Localizer
	current   string
)

// Init parses the embedded locales and selects lang. Unknown languages fall
// back to English.
func Init(lang string) {
	b := i18n.NewBundle(language.English)
	b.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	files, _ := fs.ReadDir(localeFS, "locales")
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + f.Name())
		if err != nil {
			continue
		}
		_, _ = b.ParseMessageFileBytes(data, f.Name())
	}

	lang = strings.TrimSpace(lang)
	if lang == "" {
		lang = "en"
	}

	mu.Lock()
	bundle = b
	localizer = i18n.NewLocalizer(b, lang, "en")
	current = lang
	mu.Unlock()
}

// Lang returns the active language tag.
func Lang() string {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Available lists the language tags that have a locale file.
func Available() []string {
	mu.RLock()
	b := bundle
	mu.RUnlock()
	if b == nil {
		Init("en")
		return Available()
	}
	tags := b.LanguageTags()
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		out = append(out, tag.String())
	}
	return out
}

// T translates messageID. A single map argument is used as template data;
// any other arguments are applied fmt-style. Missing IDs are returned as is.
func T(messageID string, args ...any) string {
	mu.RLock()
	l := localizer
	mu.RUnlock()
	if l == nil {
		Init("en")
		mu.RLock()
		l = localizer
		mu.RUnlock()
	}

	cfg := &i18n.LocalizeConfig{MessageID: messageID}
	if len(args) == 1 {
		if data, ok := args[0].(map[string]any); ok {
			cfg.TemplateData = data
			args = nil
		}
	}
	msg, err := l.Localize(cfg)
	if err != nil && msg == "" {
		msg = messageID
	}
	if len(args) > 0 {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}
