// Package api hosts the admin HTTP server. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/admin/dedup and /v1/admin/cleanup to run the batch jobs,
//     guarded by the pre-shared admin key.
package api
