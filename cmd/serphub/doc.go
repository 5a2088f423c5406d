// Package main hosts the serphub coordination service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, the worker protocol (claim/submit), and the admin
//     surface for projects, queries, stats, and results. Requests are validated and mapped onto the serp store
//     interfaces; worker routes sit behind a shared X-Worker-Key when auth is enabled.
//   - Dispatch: internal/dispatcher mediates between polling workers and the stores. A claim atomically flips the
//     best pending query to processing (priority desc, then creation order); a submission stores every scraped row,
//     optionally archives raw page HTML, completes the query, and publishes a completion notification.
//   - Persistence: Postgres via pgx when a database is configured, with goose migrations applied at startup; an
//     in-memory store otherwise. Claim atomicity rides on FOR UPDATE SKIP LOCKED, so any number of serphub replicas
//     can share one database.
//   - Archive & fanout: raw SERP snapshots go to the configured blob backend (memory/local/GCS) keyed by query and
//     content hash. A compact Pub/Sub message is published per completed query when a topic is configured.
//   - Configuration & plumbing: Viper populates config from env/files; zap provides structured logging; Prometheus
//     counters, gauges, and histograms are exported via the metrics middleware and /metrics handler; a cron-driven
//     sampler refreshes queue-depth gauges.
//
// Operational notes:
//   - Concurrency model: the server holds no claim state, all coordination lives in the store, so scale-out is a
//     matter of adding replicas. Workers poll; nothing is pushed.
//   - Claims have no lease: a worker that dies mid-scrape leaves its query in processing. Recycle stuck rows by
//     deleting or re-enqueueing them through the admin surface.
//   - Observability: zap logs carry request IDs and query IDs at key transitions; Prometheus tracks enqueues,
//     claims, empty polls, submissions, stored rows, and queue depth by status.
//
// Quick checklist:
//   - Configure env vars with the SERPFLOW_ prefix: SERPFLOW_SERVER_PORT, SERPFLOW_AUTH_WORKER_KEY,
//     SERPFLOW_DATABASE_HOST (empty selects the in-memory store), SERPFLOW_ARCHIVE_BACKEND, and
//     SERPFLOW_PUBSUB_PROJECT_ID/SERPFLOW_PUBSUB_TOPIC_NAME when notifications are required.
//   - Run locally: go run ./cmd/serphub -config config.yaml (or rely solely on env overrides).
//   - The process reacts to SIGTERM with a graceful HTTP drain; in-flight submissions are bounded by the server
//     request timeout.
package main
