package stealthwebui

import "embed"

// TemplateFS holds the HTML templates, split into layout, pages and partials.
//
//go:embed templates/*
var TemplateFS embed.FS

// StaticFS holds the browser assets served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
