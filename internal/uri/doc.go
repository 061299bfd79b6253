// Package uri splits a raw request target into its decoded path and an
// ordered multi-map of query parameters.
//
// Parsing never fails: malformed percent-encoding is passed through as
// literal text.
//
//	path, params := uri.Parse("/search?q=a&q=b&lang=en")
//	// path == "/search"
//	// params.Values("q") == []string{"a", "b"}
//	// params.Keys() == []string{"q", "lang"}
package uri
