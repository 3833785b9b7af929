// Package api exposes the daemon's HTTP and WebSocket surface: alarm CRUD,
// the position feed, the trigger event stream, place lookups, health, and
// metrics.
package api
