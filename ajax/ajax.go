package ajax

import "context"

// DefaultNonceField is the request field the nonce token is read from when
// a descriptor does not override it via NonceFielder.
const DefaultNonceField = "_ajaxnonce"

// Descriptor declares the dispatch metadata of an ajax endpoint.
//
// Metadata methods MUST return their declared values on the zero value of
// the implementing type. The registry probes a reflect-constructed zero
// instance before any factory has run, so implementations return constants
// rather than reading fields.
type Descriptor interface {
	// Action is the name the endpoint is dispatched under. An empty
	// action marks the descriptor invalid; it cannot be registered.
	Action() string

	// NonceHandle names the anti-forgery handle protecting the action.
	// Empty means the action is not nonce-gated.
	NonceHandle() string
}

// NonceFielder optionally overrides the request field the nonce token is
// carried in. Descriptors without it use DefaultNonceField.
type NonceFielder interface {
	NonceField() string
}

// Handler is a dispatchable endpoint: declarative metadata plus the
// callback invoked once the nonce gate has passed.
type Handler interface {
	Descriptor

	// ServeAjax handles one dispatched request. A non-nil Response is
	// emitted as the reply envelope. Returning nil, nil signals that the
	// handler wrote the response itself through r.Writer.
	ServeAjax(ctx context.Context, r *Request) (*Response, error)
}

// Func adapts a bare function to Handler with fixed metadata. It suits
// eager registration; deferred (factory) registration needs a named type
// whose zero value carries the metadata.
type Func struct {
	// Name is the action name.
	Name string
	// Handle is the nonce handle; empty leaves the action ungated.
	Handle string
	// Field overrides the nonce field; empty means DefaultNonceField.
	Field string
	// Fn is the callback.
	Fn func(ctx context.Context, r *Request) (*Response, error)
}

func (f Func) Action() string      { return f.Name }
func (f Func) NonceHandle() string { return f.Handle }

func (f Func) NonceField() string {
	if f.Field == "" {
		return DefaultNonceField
	}
	return f.Field
}

func (f Func) ServeAjax(ctx context.Context, r *Request) (*Response, error) {
	return f.Fn(ctx, r)
}
