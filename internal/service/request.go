package service

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/vyrodovalexey/avadiag/internal/uri"
)

// DefaultProto is the protocol version used when none is known.
const DefaultProto = "HTTP/1.1"

// DefaultMaxBodySize bounds the request body read by FromHTTP.
const DefaultMaxBodySize int64 = 1 << 20

// ErrBodyTooLarge is returned by FromHTTP when the body exceeds the limit.
var ErrBodyTooLarge = errors.New("request body too large")

// Request is an inbound request. It is immutable once constructed;
// handlers must not modify it since the same value is offered to every
// handler of a fallback chain.
type Request struct {
	Method     string
	Proto      string
	Path       string
	Params     uri.Params
	Header     http.Header
	Body       []byte
	RemoteAddr string
}

// NewRequest builds a GET request for the raw target, parsing path and
// query. It is mostly useful in tests and for internal dispatch.
func NewRequest(method, target string) *Request {
	path, params := uri.Parse(target)
	if method == "" {
		method = http.MethodGet
	}
	return &Request{
		Method: method,
		Proto:  DefaultProto,
		Path:   path,
		Params: params,
		Header: make(http.Header),
	}
}

// HeaderValue returns the first value of a header, case-insensitively.
func (r *Request) HeaderValue(name string) string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get(name)
}

// FromHTTP converts a net/http request. A body longer than maxBody bytes
// is rejected with ErrBodyTooLarge rather than truncated; a non-positive
// maxBody uses DefaultMaxBodySize.
func FromHTTP(r *http.Request, maxBody int64) (*Request, error) {
	if maxBody <= 0 {
		maxBody = DefaultMaxBodySize
	}
	if r.ContentLength > maxBody {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrBodyTooLarge, r.ContentLength, maxBody)
	}

	target := r.RequestURI
	if target == "" && r.URL != nil {
		target = r.URL.RequestURI()
	}
	path, params := uri.Parse(target)

	var body []byte
	if r.Body != nil && r.Body != http.NoBody {
		b, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, tooLarge.Limit)
			}
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		body = b
	}

	proto := r.Proto
	if proto == "" {
		proto = DefaultProto
	}

	return &Request{
		Method:     r.Method,
		Proto:      proto,
		Path:       path,
		Params:     params,
		Header:     r.Header.Clone(),
		Body:       body,
		RemoteAddr: r.RemoteAddr,
	}, nil
}
