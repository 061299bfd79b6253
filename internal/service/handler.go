package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/vyrodovalexey/avadiag/internal/observability"
)

// ErrNilResponse is returned when a handler yields neither a response nor
// an error.
var ErrNilResponse = errors.New("handler returned nil response")

// Handler produces a response for a request. Implementations may be called
// any number of times and concurrently for different requests.
type Handler interface {
	Serve(ctx context.Context, req *Request) (*Response, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req *Request) (*Response, error)

// Serve calls f.
func (f HandlerFunc) Serve(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Static returns a handler that always answers with resp.
func Static(resp *Response) Handler {
	return HandlerFunc(func(context.Context, *Request) (*Response, error) {
		return resp, nil
	})
}

// httpHandler serves a Handler over net/http.
type httpHandler struct {
	handler     Handler
	logger      observability.Logger
	maxBodySize int64
}

// HTTPOption configures HTTPHandler.
type HTTPOption func(*httpHandler)

// WithMaxBodySize bounds the request body read per request.
func WithMaxBodySize(n int64) HTTPOption {
	return func(h *httpHandler) {
		h.maxBodySize = n
	}
}

// HTTPHandler adapts h to net/http. A handler error becomes a plain-text 500.
func HTTPHandler(h Handler, logger observability.Logger, opts ...HTTPOption) http.Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	hh := &httpHandler{
		handler:     h,
		logger:      logger,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(hh)
	}
	return hh
}

// ServeHTTP implements http.Handler.
func (h *httpHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := FromHTTP(r, h.maxBodySize)
	if err != nil {
		h.logger.Warn("failed to read request",
			observability.String("path", r.URL.Path),
			observability.Error(err),
		)
		if errors.Is(err, ErrBodyTooLarge) {
			_, _ = Error(http.StatusRequestEntityTooLarge, r.Proto, "request body too large").WriteTo(w)
			return
		}
		_, _ = Error(http.StatusBadRequest, r.Proto, "bad request").WriteTo(w)
		return
	}

	resp, err := Dispatch(r.Context(), h.handler, req)
	if err != nil {
		h.logger.WithContext(r.Context()).Error("handler failed",
			observability.String("method", req.Method),
			observability.String("path", req.Path),
			observability.Error(err),
		)
		_, _ = Error(http.StatusInternalServerError, req.Proto, "internal server error").WriteTo(w)
		return
	}

	if _, err := resp.WriteTo(w); err != nil {
		h.logger.Debug("failed to write response",
			observability.String("path", req.Path),
			observability.Error(err),
		)
	}
}

// Dispatch invokes h and turns a nil response into ErrNilResponse.
func Dispatch(ctx context.Context, h Handler, req *Request) (*Response, error) {
	resp, err := h.Serve(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, ErrNilResponse
	}
	return resp, nil
}
