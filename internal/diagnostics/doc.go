// Package diagnostics runs the isolated diagnostics server.
//
// The server answers a fixed allow-list of diagnostic routes on its own
// port. Requests are served by a dedicated worker pool that shares nothing
// with the primary admin server, and stats and tracing are sent to no-op
// sinks, so the diagnostics endpoints keep answering while the primary
// server is saturated or blocked.
//
// Lifecycle:
//
//	Unstarted --Start--> Running --Close--> Closed
//
// Close may be called any number of times.
package diagnostics
