// Package api hosts the HTTP server, middleware, and REST handlers.
// Notable routes:
//   - GET /health for liveness probes, GET /metrics for Prometheus.
//   - GET /queries/next and POST /results: the worker protocol, guarded
//     by the X-Worker-Key shared secret.
//   - /admin/... for project CRUD, query enqueueing, listings, and stats.
package api
