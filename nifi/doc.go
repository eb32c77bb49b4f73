// Package nifi defines the contracts the deployment engine holds against a
// remote NiFi instance: typed entities for the slice of the remote data model
// the engine reads, narrow API interfaces for the operations it invokes, and
// an HTTP client implementation.
//
// Remote responses are modeled with explicit optional fields: anything the
// remote system may omit is a pointer, never a probed dynamic attribute.
// All operations take an explicit RemoteSession value; there is no ambient
// per-process session state, so concurrent batches against different targets
// cannot interfere.
package nifi
