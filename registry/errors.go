package registry

import "errors"

// Sentinel errors surfaced by the metadata cache and the registry. Call
// sites wrap them with fmt.Errorf("%w: ...") to attach the offending type
// or action; callers test with errors.Is.
var (
	// ErrInvalidDescriptorType marks a type that does not implement
	// ajax.Descriptor. This is a wiring error and is raised by every
	// metadata operation on such a type.
	ErrInvalidDescriptorType = errors.New("invalid descriptor type")

	// ErrUndefinedAction marks a descriptor that declares no action
	// name. Such a descriptor is invalid and must not be dispatched.
	ErrUndefinedAction = errors.New("undefined action")

	// ErrActionExists marks a Register call for an already-bound action.
	// Use Replace for last-write-wins semantics.
	ErrActionExists = errors.New("action already registered")

	// ErrNotRegistered marks a Call for an action nothing registered.
	ErrNotRegistered = errors.New("action not registered")
)
