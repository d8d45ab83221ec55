package registry

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/ajaxmux/ajaxmux/ajax"
)

// ArgsSchemer is implemented by handlers that can describe their argument
// shape. Introspection listings include the schema when present.
type ArgsSchemer interface {
	ArgsSchema() *jsonschema.Schema
}

func schemaOf(d ajax.Descriptor) *jsonschema.Schema {
	if s, ok := d.(ArgsSchemer); ok {
		return s.ArgsSchema()
	}
	return nil
}

// TypedOption tweaks a handler built by NewTyped.
type TypedOption func(*typedConfig)

type typedConfig struct {
	field string
}

// WithNonceField overrides the request field the nonce token is read
// from.
func WithNonceField(field string) TypedOption {
	return func(c *typedConfig) { c.field = field }
}

// NewTyped wraps a strongly typed callback in a Handler that decodes the
// request arguments into A before invoking it. Decoding is strict:
// unknown argument names fail, and the failure is reported to the caller
// as an invalid_args envelope rather than an error. The argument schema
// is reflected from A and exposed for introspection.
//
// Arguments pass through JSON, so A's fields line up with JSON request
// bodies; form and query submissions deliver every value as a string and
// A must use string fields for those. Typed handlers carry their
// metadata as values, so they suit eager registration, not
// RegisterFactory.
func NewTyped[A any](action, nonceHandle string, fn func(ctx context.Context, r *ajax.Request, args A) (*ajax.Response, error), opts ...TypedOption) ajax.Handler {
	var cfg typedConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	reflector := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	schema := reflector.Reflect(new(A))

	return &typedHandler[A]{
		name:   action,
		handle: nonceHandle,
		field:  cfg.field,
		schema: schema,
		fn:     fn,
	}
}

type typedHandler[A any] struct {
	name   string
	handle string
	field  string
	schema *jsonschema.Schema
	fn     func(ctx context.Context, r *ajax.Request, args A) (*ajax.Response, error)
}

func (h *typedHandler[A]) Action() string      { return h.name }
func (h *typedHandler[A]) NonceHandle() string { return h.handle }

func (h *typedHandler[A]) NonceField() string {
	if h.field == "" {
		return ajax.DefaultNonceField
	}
	return h.field
}

func (h *typedHandler[A]) ArgsSchema() *jsonschema.Schema { return h.schema }

func (h *typedHandler[A]) ServeAjax(ctx context.Context, r *ajax.Request) (*ajax.Response, error) {
	raw, err := json.Marshal(r.Args)
	if err != nil {
		return ajax.Failure(ajax.ErrorData{Code: "invalid_args", Message: "arguments are not encodable"}), nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var args A
	if err := dec.Decode(&args); err != nil {
		return ajax.Failure(ajax.ErrorData{Code: "invalid_args", Message: err.Error()}), nil
	}

	return h.fn(ctx, r, args)
}
