// Package main hosts the statements backend entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, the monthly
//     statements session endpoints, the cc-batch code generator, and the Excel
//     macro catalog. Submissions are validated, persisted via the SessionStore,
//     and enqueued for background work.
//   - Queue & workers: sessions flow through a bounded in-memory queue sized by
//     config.Processing.QueueDepth and are consumed by a fixed worker pool
//     sized by config.Processing.Workers. Context cancellation stops workers
//     cleanly on shutdown.
//   - Classification pipeline: workers classify each statement against the
//     submitted do-not-mail list (exact match, then fuzzy match with a review
//     question for mid-confidence hits) and route it to a destination bucket.
//     Sessions with open questions pause until the review endpoints resolve
//     them; the results phase then builds a zip archive of per-destination CSVs
//     plus a JSON summary.
//   - Persistence & fanout: session metadata lives in memory or Postgres,
//     archives in a local directory or GCS, and a compact completion event is
//     published to Pub/Sub when a topic is configured. Progress events are
//     buffered by the progress Hub and fanned out to log and Prometheus sinks.
//   - Configuration & plumbing: Viper populates config from env/files (prefix
//     ALAE); zap provides structured logging; Prometheus metrics are exported
//     via the metrics middleware and /metrics handler. A retention sweeper
//     prunes finished sessions and stale local archives on an interval.
//
// Operational notes:
//   - Shutdown is coordinated via context cancellation propagated from main
//     through the queue to workers; the HTTP server drains with a 10s budget.
//   - Rate limiting: a per-client token bucket guards the API when
//     ALAE_RATE_LIMIT_ENABLED is set; rejected requests get HTTP 429 with a
//     Retry-After hint, which the pkg/client poller backs off on.
//   - Run locally: go run ./cmd/alaeautomates -config config.yaml (or rely
//     solely on ALAE_* env overrides).
package main
