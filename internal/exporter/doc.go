// Package exporter renders a Prometheus gatherer as the JSON documents
// served by the admin endpoints:
//
//   - /stats.json: a flat object of sample name to value
//   - /admin/metrics.json: every family with its type, help and samples
//   - /admin/per_host_metrics.json: samples carrying a "host" label, grouped by host
//
// All three accept "pretty=true" to indent the output; /stats.json and
// /admin/metrics.json accept "filter=<regexp>" to select sample names.
// A client that asks for HTML on a path without a ".json" suffix gets the
// document wrapped in a page.
package exporter
