package service

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strconv"

	"golang.org/x/text/language"
)

// Content types produced by the builders.
const (
	ContentTypePlain = "text/plain; charset=UTF-8"
	ContentTypeJSON  = "application/json; charset=UTF-8"
	ContentTypeHTML  = "text/html; charset=UTF-8"
)

// Computed header names.
const (
	HeaderContentLanguage = "Content-Language"
	HeaderContentLength   = "Content-Length"
	HeaderContentType     = "Content-Type"
)

// contentLanguage is the language tag advertised on every response.
var contentLanguage = language.English.String()

// NewResponse builds a response. Extra headers are appended in the order
// given, then Content-Language, Content-Length (the exact body length) and
// Content-Type. Nothing is replaced; the body is copied.
func NewResponse(status int, proto string, body []byte, contentType string, extra ...HeaderField) *Response {
	if proto == "" {
		proto = DefaultProto
	}

	b := make([]byte, len(body))
	copy(b, body)

	header := make([]HeaderField, 0, len(extra)+3)
	header = append(header, extra...)
	header = append(header,
		HeaderField{Name: HeaderContentLanguage, Value: contentLanguage},
		HeaderField{Name: HeaderContentLength, Value: strconv.Itoa(len(b))},
		HeaderField{Name: HeaderContentType, Value: contentType},
	)

	return &Response{
		proto:  proto,
		status: status,
		header: header,
		body:   b,
	}
}

// OK builds a plain-text 200 response.
func OK(proto, message string) *Response {
	return NewResponse(http.StatusOK, proto, []byte(message), ContentTypePlain)
}

// NotFound builds a plain-text 404 response.
func NotFound(proto, message string) *Response {
	return NewResponse(http.StatusNotFound, proto, []byte(message), ContentTypePlain)
}

// Error builds a plain-text response with the given status.
func Error(status int, proto, message string) *Response {
	return NewResponse(status, proto, []byte(message), ContentTypePlain)
}

// JSON builds a JSON response from v. When indent is set the output is
// pretty-printed.
func JSON(status int, proto string, v any, indent bool) (*Response, error) {
	var (
		body []byte
		err  error
	)
	if indent {
		body, err = json.MarshalIndent(v, "", "  ")
	} else {
		body, err = json.Marshal(v)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return NewResponse(status, proto, body, ContentTypeJSON), nil
}

// HTML builds an HTML page with the escaped title and a preformatted body.
func HTML(status int, proto, title, preformatted string) *Response {
	page := "<!DOCTYPE html><html><head><title>" + html.EscapeString(title) +
		"</title></head><body><pre>" + html.EscapeString(preformatted) +
		"</pre></body></html>"
	return NewResponse(status, proto, []byte(page), ContentTypeHTML)
}
