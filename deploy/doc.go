// Package deploy implements versioned flow deployment onto remote NiFi
// instances: path-addressed placement in the process-group tree, registry
// resolution, naming-conflict pause and resume, paired batch ordering,
// parameter-context synchronization, and port auto-connect.
//
// The Engine is the entry point. It deals in explicit sessions: every remote
// operation takes the session it should run under, and nothing is cached
// across batch runs except what the caller chooses to keep.
package deploy
