// Package encoding decides which representation a client prefers.
//
// The Accept header check is a plain substring containment test, not an
// RFC 7231 media-range parser: "application/jsonlike" matches the JSON
// token and q-values are ignored. Handlers rely on this looser behavior,
// so callers must not assume structured negotiation.
//
//	if encoding.ExpectsJSON(req) {
//	    // render JSON
//	} else if encoding.ExpectsHTML(req) {
//	    // render HTML
//	}
package encoding
