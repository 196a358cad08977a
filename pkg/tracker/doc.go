// Package tracker wraps a tree of value.Object and value.Array containers in
// tracking proxies. A Proxy records every own-property read into the active
// Scope of its ScopeStack, lazily creates one child Proxy per visited
// subtree, and keeps child identity stable until the live value at that key
// is replaced. Relink and BatchRelink replace values in place while leaving
// the wrappers of untouched siblings intact, so callers that memoize on
// wrapper identity are only invalidated where something actually changed.
//
// Control operations (Enter, Leave, Peek, Relink, Info, Revoke) are package
// functions taking a *Proxy rather than methods keyed by name, so they can
// never collide with keys of the wrapped data.
//
// A tree is meant to be driven by one goroutine at a time. ScopeStack is
// safe for concurrent use.
package tracker
