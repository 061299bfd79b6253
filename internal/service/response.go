package service

import (
	"net/http"
	"strings"
)

// HeaderField is a single response header. Order and duplicates are kept.
type HeaderField struct {
	Name  string
	Value string
}

// Response is a fully formed response. It is only produced by the
// builders in this package and is never mutated afterwards.
type Response struct {
	proto  string
	status int
	header []HeaderField
	body   []byte
}

// Proto returns the protocol version.
func (r *Response) Proto() string {
	return r.proto
}

// Status returns the status code.
func (r *Response) Status() int {
	return r.status
}

// IsNotFound reports whether the status is 404.
func (r *Response) IsNotFound() bool {
	return r.status == http.StatusNotFound
}

// Header returns a copy of the header fields in insertion order.
func (r *Response) Header() []HeaderField {
	out := make([]HeaderField, len(r.header))
	copy(out, r.header)
	return out
}

// Get returns the first value of the named header, case-insensitively.
func (r *Response) Get(name string) string {
	for _, h := range r.header {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// Values returns every value of the named header in insertion order.
func (r *Response) Values(name string) []string {
	var out []string
	for _, h := range r.header {
		if strings.EqualFold(h.Name, name) {
			out = append(out, h.Value)
		}
	}
	return out
}

// Body returns a copy of the body.
func (r *Response) Body() []byte {
	out := make([]byte, len(r.body))
	copy(out, r.body)
	return out
}

// BodyString returns the body as a string.
func (r *Response) BodyString() string {
	return string(r.body)
}

// Len returns the body length in bytes.
func (r *Response) Len() int {
	return len(r.body)
}

// WriteTo writes the response to w: headers in insertion order, then the
// status, then the body.
func (r *Response) WriteTo(w http.ResponseWriter) (int64, error) {
	dst := w.Header()
	for _, h := range r.header {
		dst.Add(h.Name, h.Value)
	}
	w.WriteHeader(r.status)
	n, err := w.Write(r.body)
	return int64(n), err
}
