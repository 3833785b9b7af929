// Package client wraps the daemon's HTTP and WebSocket API with convenience
// helpers used by the CLI.
package client
