// Package app is the composition root of namegate.
//
// Ownership boundary:
// - the active data client slot (provider.Holder) and its single writer
// - the current-network state and the reconciler watching it
// - the HTTP surface: operator API, error gate, page dispatch
//
// App does not resolve names; page internals are served elsewhere.
package app
