// Package targetstore persists remote targets and flow templates in NATS KV.
// Records carry a version number for optimistic concurrency; concurrent
// modification surfaces as an invalid-input error rather than a silent
// overwrite.
package targetstore
