// Package monitor wires the alarm store, the tracking session, and the
// proximity engine into one lifecycle and exposes the alarm operations the
// API surface calls.
package monitor
