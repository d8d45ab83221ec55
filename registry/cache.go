package registry

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/ajaxmux/ajaxmux/ajax"
	"github.com/ajaxmux/ajaxmux/nonce"
)

var descriptorType = reflect.TypeOf((*ajax.Descriptor)(nil)).Elem()

// Meta is the probed metadata snapshot of a descriptor type.
type Meta struct {
	// Action is the declared action name. Empty means the descriptor is
	// invalid.
	Action string

	// NonceHandle is the declared nonce handle. Empty means the action
	// is not nonce-gated.
	NonceHandle string

	// NonceField is the request field the token is read from.
	NonceField string
}

// Valid reports whether the descriptor declared a dispatchable action.
func (m Meta) Valid() bool { return m.Action != "" }

// HasNonce reports whether the action is nonce-gated.
func (m Meta) HasNonce() bool { return m.NonceHandle != "" }

// Nonce returns the declared handle as a value object, or nil when the
// action is ungated.
func (m Meta) Nonce() *nonce.Nonce {
	if m.NonceHandle == "" {
		return nil
	}
	return &nonce.Nonce{Handle: m.NonceHandle}
}

// Cache is the metadata accessor. It answers what action name and nonce
// requirements a descriptor type declares without running any factory:
// the first lookup for a type builds a zero-value probe via reflection
// and keeps it, so repeated lookups return the identical instance.
// Insert-only, never evicts, safe for concurrent use.
//
// A Registry owns a private Cache by default; hosts that register the
// same descriptor types across several registries can share one via
// WithCache to probe each type once.
type Cache struct {
	entries sync.Map // reflect.Type -> *cacheEntry
}

type cacheEntry struct {
	probe ajax.Descriptor
	meta  Meta
}

// NewCache returns an empty metadata cache.
func NewCache() *Cache { return &Cache{} }

// Reflected returns the zero-value probe for t, building and caching it
// on first use. Pointer types are normalized, so t and *t share a probe.
func (c *Cache) Reflected(t reflect.Type) (ajax.Descriptor, error) {
	e, err := c.lookup(t)
	if err != nil {
		return nil, err
	}
	return e.probe, nil
}

// Meta returns the probed metadata snapshot for t.
func (c *Cache) Meta(t reflect.Type) (Meta, error) {
	e, err := c.lookup(t)
	if err != nil {
		return Meta{}, err
	}
	return e.meta, nil
}

// Action returns the action name t declares, or ErrUndefinedAction when
// it declares none.
func (c *Cache) Action(t reflect.Type) (string, error) {
	e, err := c.lookup(t)
	if err != nil {
		return "", err
	}
	if !e.meta.Valid() {
		return "", fmt.Errorf("%w: %s", ErrUndefinedAction, normalize(t))
	}
	return e.meta.Action, nil
}

// HasNonce reports whether t declares a nonce handle.
func (c *Cache) HasNonce(t reflect.Type) (bool, error) {
	e, err := c.lookup(t)
	if err != nil {
		return false, err
	}
	return e.meta.HasNonce(), nil
}

// Nonce returns t's declared handle as a value object, or nil when t
// declares none.
func (c *Cache) Nonce(t reflect.Type) (*nonce.Nonce, error) {
	e, err := c.lookup(t)
	if err != nil {
		return nil, err
	}
	return e.meta.Nonce(), nil
}

// NonceField returns the request field carrying the token for t.
func (c *Cache) NonceField(t reflect.Type) (string, error) {
	e, err := c.lookup(t)
	if err != nil {
		return "", err
	}
	return e.meta.NonceField, nil
}

func (c *Cache) lookup(t reflect.Type) (*cacheEntry, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil type", ErrInvalidDescriptorType)
	}
	t = normalize(t)
	if e, ok := c.entries.Load(t); ok {
		return e.(*cacheEntry), nil
	}

	probe, err := probeType(t)
	if err != nil {
		return nil, err
	}
	e := &cacheEntry{probe: probe, meta: metaOf(probe)}
	// First store wins so concurrent probers agree on the instance.
	actual, _ := c.entries.LoadOrStore(t, e)
	return actual.(*cacheEntry), nil
}

// normalize unwraps pointer types so *T and T share a cache entry.
func normalize(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// probeType builds the zero-value probe for t. reflect.New yields *T,
// whose method set covers both value and pointer receivers.
func probeType(t reflect.Type) (ajax.Descriptor, error) {
	if t.Kind() == reflect.Interface {
		return nil, fmt.Errorf("%w: %s is an interface, need a concrete type", ErrInvalidDescriptorType, t)
	}
	if !reflect.PointerTo(t).Implements(descriptorType) {
		return nil, fmt.Errorf("%w: %s does not implement ajax.Descriptor", ErrInvalidDescriptorType, t)
	}
	return reflect.New(t).Interface().(ajax.Descriptor), nil
}

// metaOf snapshots a descriptor's declared metadata.
func metaOf(d ajax.Descriptor) Meta {
	m := Meta{
		Action:      d.Action(),
		NonceHandle: d.NonceHandle(),
		NonceField:  ajax.DefaultNonceField,
	}
	if f, ok := d.(ajax.NonceFielder); ok {
		if field := f.NonceField(); field != "" {
			m.NonceField = field
		}
	}
	return m
}

// TypeOf returns the reflect.Type of T without needing a value of it.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// ReflectedFor is the generic form of Cache.Reflected.
func ReflectedFor[T ajax.Descriptor](c *Cache) (ajax.Descriptor, error) {
	return c.Reflected(TypeOf[T]())
}

// MetaFor is the generic form of Cache.Meta.
func MetaFor[T ajax.Descriptor](c *Cache) (Meta, error) {
	return c.Meta(TypeOf[T]())
}
