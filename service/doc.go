// Package service exposes the deployment engine and the target catalog over
// HTTP. Deployment, conflict resolution, parameter sync and paired-batch runs
// are JSON endpoints under /api; batch progress streams over a websocket at
// /ws/batch.
package service
