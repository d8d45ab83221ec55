// Package dispatch serves a registry of ajax actions over HTTP. It
// resolves the action from the URL, gates nonce-protected handlers
// behind a nonce.Verifier, extracts request arguments, runs the handler
// and writes the response envelope.
//
// Routing uses "{base}/{action}" patterns for GET and POST; every other
// method gets the mux's 405. Rejections are JSON envelopes by default
// and fall back to the legacy plain-text bodies "0" (unknown action) and
// "-1" (refused) when the client's Accept header prefers text/plain.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"

	"github.com/ajaxmux/ajaxmux/ajax"
	"github.com/ajaxmux/ajaxmux/internal/logctx"
	"github.com/ajaxmux/ajaxmux/nonce"
	"github.com/ajaxmux/ajaxmux/registry"
)

var _ http.Handler = (*Handler)(nil)

var (
	jsonMediaType      = contenttype.NewMediaType("application/json")
	plainTextMediaType = contenttype.NewMediaType("text/plain")
	responseMediaTypes = []contenttype.MediaType{jsonMediaType, plainTextMediaType}
)

// NonceHeader is the fallback location for the nonce token when the
// declared form field is absent from the request arguments.
const NonceHeader = "X-Ajax-Nonce"

// DefaultBasePath is the mount point used when WithBasePath is not given.
const DefaultBasePath = "/ajax"

// Legacy plain-text bodies of the host CMS convention.
const (
	legacyMiss   = "0"  // action not resolvable
	legacyRefuse = "-1" // request refused before the handler ran
)

// Observer receives dispatch lifecycle notifications for host
// instrumentation. Both calls run on the request goroutine; keep them
// cheap.
type Observer interface {
	BeforeDispatch(ctx context.Context, req *ajax.Request)
	AfterDispatch(ctx context.Context, req *ajax.Request, res *ajax.Response, err error)
}

// Option configures the Handler.
type Option func(*newConfig)

type newConfig struct {
	logger   *slog.Logger
	verifier nonce.Verifier
	basePath string
	observer Observer
	catalog  bool
}

// WithLogger sets the logger used by the handler. Defaults to
// slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(c *newConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithVerifier wires the nonce verifier consulted for handlers that
// declare a nonce handle. Without one, dispatching such a handler is a
// wiring error and fails with a 500.
func WithVerifier(v nonce.Verifier) Option {
	return func(c *newConfig) { c.verifier = v }
}

// WithBasePath overrides DefaultBasePath. The path must start with "/"
// and not be the bare root.
func WithBasePath(p string) Option {
	return func(c *newConfig) { c.basePath = p }
}

// WithObserver registers a dispatch lifecycle observer.
func WithObserver(o Observer) Option {
	return func(c *newConfig) { c.observer = o }
}

// WithCatalog additionally serves "GET {base}": a success envelope
// listing every registered action with its nonce requirements and, for
// typed handlers, the argument schema.
func WithCatalog() Option {
	return func(c *newConfig) { c.catalog = true }
}

// Handler dispatches ajax actions registered in a registry.Registry.
type Handler struct {
	mux      *http.ServeMux
	log      *slog.Logger
	reg      *registry.Registry
	verifier nonce.Verifier
	observer Observer
	basePath string
}

// New constructs the dispatch handler for reg.
func New(reg *registry.Registry, opts ...Option) (*Handler, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}

	cfg := &newConfig{logger: slog.Default(), basePath: DefaultBasePath}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	base := strings.TrimSuffix(cfg.basePath, "/")
	if base == "" || !strings.HasPrefix(base, "/") {
		return nil, fmt.Errorf("invalid base path %q", cfg.basePath)
	}

	h := &Handler{
		log:      slog.New(logctx.Handler{Handler: cfg.logger.Handler()}),
		reg:      reg,
		verifier: cfg.verifier,
		observer: cfg.observer,
		basePath: base,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(fmt.Sprintf("GET %s/{action}", base), h.handleAction)
	mux.HandleFunc(fmt.Sprintf("POST %s/{action}", base), h.handleAction)
	if cfg.catalog {
		mux.HandleFunc(fmt.Sprintf("GET %s", base), h.handleCatalog)
	}
	h.mux = mux
	return h, nil
}

// BasePath reports the path the handler is mounted under.
func (h *Handler) BasePath() string { return h.basePath }

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r.WithContext(logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		Method:     r.Method,
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	})))
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	action := r.PathValue("action")
	h.log.InfoContext(ctx, "dispatch.start", slog.String("action", action))

	entry, ok := h.reg.Lookup(action)
	if !ok {
		h.log.InfoContext(ctx, "dispatch.action.miss", slog.String("action", action))
		h.writeRefusal(w, r, http.StatusNotFound, legacyMiss,
			ajax.ErrorData{Code: "undefined_action", Message: "undefined action"})
		return
	}

	meta := entry.Meta()
	ctx = logctx.WithDispatchData(ctx, &logctx.DispatchData{
		Action:      meta.Action,
		NonceHandle: meta.NonceHandle,
	})

	req := ajax.NewRequest(meta.Action, r)
	req.Writer = w
	if r.Method == http.MethodPost && r.ContentLength > 0 && len(req.Args) == 0 {
		// A body that yields no arguments is indistinguishable from an
		// unparseable one; the extractor swallows decode failures.
		h.log.DebugContext(ctx, "dispatch.args.empty",
			slog.Int64("content_length", r.ContentLength))
	}

	if meta.HasNonce() {
		if h.verifier == nil {
			h.log.ErrorContext(ctx, "dispatch.nonce.unconfigured")
			h.writeRefusal(w, r, http.StatusInternalServerError, legacyRefuse,
				ajax.ErrorData{Code: "internal", Message: "nonce verification unavailable"})
			return
		}
		token := req.Args.String(meta.NonceField)
		if token == "" {
			token = r.Header.Get(NonceHeader)
		}
		if err := h.verifier.Verify(ctx, nonce.Nonce{Handle: meta.NonceHandle}, token); err != nil {
			h.log.InfoContext(ctx, "dispatch.nonce.fail", slog.String("err", err.Error()))
			h.writeRefusal(w, r, http.StatusForbidden, legacyRefuse,
				ajax.ErrorData{Code: "invalid_nonce", Message: "nonce verification failed"})
			return
		}
	}

	handler, err := entry.Handler(ctx)
	if err != nil {
		h.log.ErrorContext(ctx, "dispatch.build.fail", slog.String("err", err.Error()))
		h.writeRefusal(w, r, http.StatusInternalServerError, legacyRefuse,
			ajax.ErrorData{Code: "internal", Message: "internal error"})
		return
	}

	if h.observer != nil {
		h.observer.BeforeDispatch(ctx, req)
	}
	res, err := handler.ServeAjax(ctx, req)
	if h.observer != nil {
		h.observer.AfterDispatch(ctx, req, res, err)
	}
	if err != nil {
		h.log.ErrorContext(ctx, "dispatch.handler.fail", slog.String("err", err.Error()))
		h.writeEnvelope(w, http.StatusInternalServerError,
			ajax.Failure(ajax.ErrorData{Code: "internal", Message: "internal error"}))
		return
	}
	if res == nil {
		// The handler wrote its own response through req.Writer.
		h.log.InfoContext(ctx, "dispatch.ok",
			slog.Duration("dur", time.Since(start)), slog.Bool("streamed", true))
		return
	}

	h.writeEnvelope(w, http.StatusOK, res)
	h.log.InfoContext(ctx, "dispatch.ok", slog.Duration("dur", time.Since(start)))
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	infos := h.reg.Describe()
	h.log.DebugContext(r.Context(), "dispatch.catalog", slog.Int("actions", len(infos)))
	h.writeEnvelope(w, http.StatusOK, ajax.Success(infos))
}

// writeRefusal emits a dispatch-level rejection, before any handler ran:
// the failure envelope by default, the legacy plain-text body when the
// client prefers text/plain.
func (h *Handler) writeRefusal(w http.ResponseWriter, r *http.Request, status int, legacy string, data ajax.ErrorData) {
	if prefersPlainText(r) {
		w.Header().Set("Content-Type", plainTextMediaType.String())
		w.WriteHeader(status)
		_, _ = io.WriteString(w, legacy)
		return
	}
	h.writeEnvelope(w, status, ajax.Failure(data))
}

// Write errors here mean the client went away; there is no better
// channel to report them on.
func (h *Handler) writeEnvelope(w http.ResponseWriter, status int, res *ajax.Response) {
	_ = res.Write(w, status)
}

// prefersPlainText reports whether the request's Accept header resolves
// to text/plain rather than application/json.
func prefersPlainText(r *http.Request) bool {
	if r.Header.Get("Accept") == "" {
		return false
	}
	mt, _, err := contenttype.GetAcceptableMediaType(r, responseMediaTypes)
	if err != nil {
		return false
	}
	return mt.Matches(plainTextMediaType)
}
