// Package ui embeds the panel's HTML templates and static assets.
package ui

import "embed"

// Assets holds web/templates and web/static.
//
//go:embed web/templates/*.html web/static/*
var Assets embed.FS
