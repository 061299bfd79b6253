package encoding

import (
	"strings"

	"github.com/vyrodovalexey/avadiag/internal/service"
)

// Media type tokens matched against the Accept header.
const (
	MediaTypeHTML = "text/html"
	MediaTypeJSON = "application/json"
)

// Path suffixes that select a representation.
const (
	SuffixHTML = ".html"
	SuffixJSON = ".json"
)

// HeaderAccept is the header inspected for content negotiation.
const HeaderAccept = "Accept"

// AcceptsContentType reports whether the request's Accept header contains
// token as a substring.
func AcceptsContentType(req *service.Request, token string) bool {
	if req == nil {
		return false
	}
	return strings.Contains(req.HeaderValue(HeaderAccept), token)
}

// ExpectsHTML reports whether the path ends in ".html" or the Accept header
// contains the HTML media type.
func ExpectsHTML(req *service.Request) bool {
	if req == nil {
		return false
	}
	return strings.HasSuffix(req.Path, SuffixHTML) || AcceptsContentType(req, MediaTypeHTML)
}

// ExpectsJSON reports whether the path ends in ".json" or the Accept header
// contains the JSON media type.
func ExpectsJSON(req *service.Request) bool {
	if req == nil {
		return false
	}
	return strings.HasSuffix(req.Path, SuffixJSON) || AcceptsContentType(req, MediaTypeJSON)
}
