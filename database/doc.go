// Package database provides connection management on top of Bun, the unit
// of work that scopes every repository call, table bootstrap from registered
// models, SQL error classification and query hooks for slow query logging,
// Prometheus metrics and OpenTelemetry tracing.
package database
