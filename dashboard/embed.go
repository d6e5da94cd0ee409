// Package dashboard provides the embedded web UI for a resource hub.
//
// The page lists every resource with its status and latest data, offers a
// button per resource that triggers a manual poll, and follows updates over
// Server-Sent Events.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
//	assets/
//	  index.html    - single page with inline CSS and JavaScript
//
//go:embed assets/*
var Assets embed.FS
