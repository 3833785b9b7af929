// Package alarms persists the alarm collection. The durable form is a JSON
// list of alarm records under a single file, written in full on every
// mutation and read once at startup.
package alarms
