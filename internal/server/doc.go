// Package server provides the optional HTTP view of a monitoring session.
//
// It is a second consumer of the shared store, next to the terminal view:
//
//   - Dashboard serving: Serves the embedded HTML/JS dashboard at "/"
//   - REST API: "/api/frames" for the current per-ID table, "/api/stats"
//     for reader counters
//   - Server-Sent Events: "/api/sse" pushes a fresh table whenever the
//     store changes
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
package server
