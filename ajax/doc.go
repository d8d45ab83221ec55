// Package ajax contains the transport-neutral contract shared by the
// registry, the dispatch middleware and handler implementations: the
// Descriptor/Handler interfaces, the Request and Response envelope types,
// and the argument-extraction convention.
//
// The package is intentionally free of dispatch logic: HTTP wiring lives in
// the dispatch package, registration and metadata probing in registry, and
// nonce schemes under nonce. Handler code imports only this package.
//
// # Descriptors
//
// A Descriptor declares where a handler binds (its action name) and whether
// an anti-forgery nonce gates it (its nonce handle). Metadata methods must
// return their declared values on the zero value of the implementing type:
// deferred registration probes a reflect-constructed instance before any
// factory has run, so metadata comes from constants, never from fields.
//
//	type ExportPosts struct {
//		DB *sql.DB // injected by the factory, nil on the probe
//	}
//
//	func (ExportPosts) Action() string      { return "export_posts" }
//	func (ExportPosts) NonceHandle() string { return "export-posts" }
//
//	func (h *ExportPosts) ServeAjax(ctx context.Context, r *ajax.Request) (*ajax.Response, error) {
//		rows, err := h.DB.QueryContext(ctx, ...)
//		...
//		return ajax.Success(rows), nil
//	}
//
// # Arguments
//
// ExtractArgs flattens a request into Args so callback code never branches
// on method or content type. The algorithm is fixed; see ExtractArgs.
//
// # Responses
//
// Handlers return the Response envelope ({"success":bool,"data":...})
// built with Success or Failure. Returning nil, nil tells the dispatcher
// the handler already wrote its own response.
package ajax
