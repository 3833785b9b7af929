// Package location owns live position plumbing: the Provider capability
// interface over a platform position source, the Session that manages the
// permission/enablement handshake and the lifetime of a continuous
// subscription, and concrete providers (push-fed and replay).
//
// The Session republishes provider updates on an internal broadcast, so a
// map view and the proximity engine can consume the same stream.
package location
