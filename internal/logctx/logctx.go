// Package logctx carries request-scoped dispatch attributes through the
// context and folds them into every log record emitted under it.
package logctx

import (
	"context"
	"log/slog"
)

// Handler decorates an slog.Handler with the request and dispatch data
// carried by the context. Wrap the application's handler once when the
// server is constructed:
//
//	logger := slog.New(logctx.Handler{Handler: slog.NewJSONHandler(os.Stderr, nil)})
type Handler struct {
	slog.Handler
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		r.AddAttrs(slog.Group("req",
			slog.String("id", rd.RequestID),
			slog.String("method", rd.Method),
			slog.String("remote_addr", rd.RemoteAddr),
			slog.String("path", rd.Path),
		))
	}

	if dd, ok := ctx.Value(dispatchDataKey{}).(*DispatchData); ok {
		r.AddAttrs(slog.Group("ajax",
			slog.String("action", dd.Action),
			slog.String("nonce_handle", dd.NonceHandle),
		))
	}

	return h.Handler.Handle(ctx, r)
}

func (h Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return Handler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h Handler) WithGroup(name string) slog.Handler {
	return Handler{Handler: h.Handler.WithGroup(name)}
}

type requestDataKey struct{}

// RequestData identifies one HTTP request.
type RequestData struct {
	RequestID  string
	Method     string
	RemoteAddr string
	Path       string
}

func WithRequestData(ctx context.Context, data *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, data)
}

type dispatchDataKey struct{}

// DispatchData identifies the resolved action within a request.
type DispatchData struct {
	Action      string
	NonceHandle string
}

func WithDispatchData(ctx context.Context, data *DispatchData) context.Context {
	return context.WithValue(ctx, dispatchDataKey{}, data)
}
