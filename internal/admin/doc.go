// Package admin provides the primary admin HTTP server.
//
// Every request passes through the gin middleware chain (recovery, request
// ID, tracing, rate limiting and request metrics) and is then dispatched by
// a fallback router: first the registry of discovered admin routes, then the
// index page.
package admin
