package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/ajaxmux/ajaxmux/ajax"
)

// Entry is one registered action: the probed metadata plus the means to
// produce its handler.
type Entry struct {
	meta   Meta
	schema *jsonschema.Schema
	build  func(ctx context.Context) (ajax.Handler, error)
}

// Meta returns the entry's metadata snapshot.
func (e *Entry) Meta() Meta { return e.meta }

// ArgsSchema returns the entry's argument schema, or nil when the handler
// does not describe one.
func (e *Entry) ArgsSchema() *jsonschema.Schema { return e.schema }

// Handler produces the handler for one dispatch. Eagerly registered
// entries return the registered instance; factory entries run their
// factory, so each dispatch gets a freshly wired handler.
func (e *Entry) Handler(ctx context.Context) (ajax.Handler, error) {
	return e.build(ctx)
}

// Info describes one registered action for introspection listings.
type Info struct {
	Action        string             `json:"action"`
	NonceRequired bool               `json:"nonceRequired"`
	NonceField    string             `json:"nonceField,omitempty"`
	Args          *jsonschema.Schema `json:"args,omitempty"`
}

// Registry is the action table: it maps action names to entries and
// notifies watchers when the table changes. Safe for concurrent use;
// lookups take the read path.
type Registry struct {
	cache *Cache

	mu      sync.RWMutex
	actions map[string]*Entry

	notifier changeNotifier
}

// Option configures a Registry.
type Option func(*Registry)

// WithCache makes the registry probe metadata through an existing cache
// instead of a private one.
func WithCache(c *Cache) Option {
	return func(r *Registry) {
		if c != nil {
			r.cache = c
		}
	}
}

// New returns an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		cache:   NewCache(),
		actions: make(map[string]*Entry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Cache exposes the registry's metadata cache.
func (r *Registry) Cache() *Cache { return r.cache }

// Register binds h under its declared action. The handler instance is
// already constructed, so metadata is read from it directly. Registering
// a handler with no action fails with ErrUndefinedAction; registering an
// action twice fails with ErrActionExists.
func (r *Registry) Register(h ajax.Handler) error {
	return r.addInstance(h, false)
}

// Replace is Register with last-write-wins semantics on collisions.
func (r *Registry) Replace(h ajax.Handler) error {
	return r.addInstance(h, true)
}

func (r *Registry) addInstance(h ajax.Handler, replace bool) error {
	if h == nil {
		return fmt.Errorf("%w: nil handler", ErrInvalidDescriptorType)
	}
	meta := metaOf(h)
	if !meta.Valid() {
		return fmt.Errorf("%w: %T", ErrUndefinedAction, h)
	}
	e := &Entry{
		meta:   meta,
		schema: schemaOf(h),
		build: func(context.Context) (ajax.Handler, error) {
			return h, nil
		},
	}
	return r.add(e, replace)
}

// RegisterFactory binds T's declared action to a factory that runs per
// dispatch. Registration consults only the zero-value probe of T through
// the metadata cache; build wires the real dependencies when a request
// actually arrives.
func RegisterFactory[T ajax.Handler](r *Registry, build func(ctx context.Context) (T, error)) error {
	t := TypeOf[T]()
	meta, err := r.cache.Meta(t)
	if err != nil {
		return err
	}
	if !meta.Valid() {
		return fmt.Errorf("%w: %s", ErrUndefinedAction, t)
	}

	var schema *jsonschema.Schema
	if probe, err := r.cache.Reflected(t); err == nil {
		schema = schemaOf(probe)
	}

	e := &Entry{
		meta:   meta,
		schema: schema,
		build: func(ctx context.Context) (ajax.Handler, error) {
			h, err := build(ctx)
			if err != nil {
				return nil, fmt.Errorf("build handler for %q: %w", meta.Action, err)
			}
			return h, nil
		},
	}
	return r.add(e, false)
}

func (r *Registry) add(e *Entry, replace bool) error {
	r.mu.Lock()
	if !replace {
		if _, exists := r.actions[e.meta.Action]; exists {
			r.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrActionExists, e.meta.Action)
		}
	}
	r.actions[e.meta.Action] = e
	r.mu.Unlock()

	r.notifier.notify()
	return nil
}

// Deregister removes action from the table. It reports whether an entry
// was bound.
func (r *Registry) Deregister(action string) bool {
	r.mu.Lock()
	_, ok := r.actions[action]
	delete(r.actions, action)
	r.mu.Unlock()

	if ok {
		r.notifier.notify()
	}
	return ok
}

// Lookup returns the entry bound to action.
func (r *Registry) Lookup(action string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.actions[action]
	return e, ok
}

// Meta returns the metadata bound to action.
func (r *Registry) Meta(action string) (Meta, bool) {
	e, ok := r.Lookup(action)
	if !ok {
		return Meta{}, false
	}
	return e.meta, true
}

// Actions returns the registered action names, sorted.
func (r *Registry) Actions() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Describe lists the registered actions for introspection, sorted by
// action name.
func (r *Registry) Describe() []Info {
	r.mu.RLock()
	infos := make([]Info, 0, len(r.actions))
	for _, e := range r.actions {
		info := Info{
			Action:        e.meta.Action,
			NonceRequired: e.meta.HasNonce(),
			Args:          e.schema,
		}
		if e.meta.HasNonce() {
			info.NonceField = e.meta.NonceField
		}
		infos = append(infos, info)
	}
	r.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Action < infos[j].Action })
	return infos
}

// Call resolves action, builds its handler and invokes it. This is the
// in-process dispatch path; HTTP serving (argument extraction, the nonce
// gate, envelopes) lives in the dispatch package. The handler runs
// outside the registry lock.
func (r *Registry) Call(ctx context.Context, req *ajax.Request) (*ajax.Response, error) {
	e, ok := r.Lookup(req.Action)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, req.Action)
	}
	h, err := e.Handler(ctx)
	if err != nil {
		return nil, err
	}
	return h.ServeAjax(ctx, req)
}

// Watch returns a channel that receives a signal after each mutation of
// the action table. Delivery is best-effort: a slow receiver misses
// intermediate signals but always gets one for the latest change.
func (r *Registry) Watch() <-chan struct{} {
	return r.notifier.subscribe()
}
