// Package service defines the request, response and handler types shared
// by every diagnostic endpoint, the response builder that finalizes
// headers, and adapters to and from net/http.
//
// A Handler is invoked on its own goroutine by the HTTP server; a call
// that waits on I/O parks that goroutine, not an OS thread, so handlers
// are written in direct style and cancellation flows through the
// context.
//
//	h := service.HandlerFunc(func(ctx context.Context, req *service.Request) (*service.Response, error) {
//	    return service.OK(req.Proto, "pong"), nil
//	})
//	http.Handle("/ping", service.HTTPHandler(h, logger))
package service
