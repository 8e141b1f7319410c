// Package dashboard provides the embedded web view of a monitoring session.
//
// The page subscribes to the server's SSE stream and redraws the per-ID
// table on every event. It is compiled into the binary, so the HTTP view
// needs no asset files at runtime.
package dashboard

import "embed"

// Assets holds the dashboard page:
//
//	assets/
//	  index.html    - table view with inline CSS and JavaScript
//
//go:embed assets/*
var Assets embed.FS
