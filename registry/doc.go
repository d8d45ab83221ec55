// Package registry binds action names to handlers and answers metadata
// questions about descriptor types without constructing them.
//
// The two halves mirror how handlers come to life. The Cache is the
// metadata accessor: given a Go type it probes a reflect-constructed zero
// value for the declared action name and nonce requirements, and keeps
// that probe for its lifetime. The Registry is the action table: eager
// registration (Register, Replace) stores a live handler, while
// RegisterFactory stores only the type's metadata plus a factory that
// builds the wired handler when a request actually dispatches. Wiring
// mistakes surface at registration time: a type outside the descriptor
// contract or one declaring no action fails fast with a sentinel error.
package registry
