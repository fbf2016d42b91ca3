// Package receipts keeps the local record of publish runs: one immutable JSON
// receipt per run, an append-only daily audit log, and the snapshot
// aggregation consumed by dashboards.
package receipts
