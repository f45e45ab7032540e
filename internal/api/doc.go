// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates internal queue models into transport-friendly DTOs
// that the CLI and dashboards can render without coupling to internal types.
//
// # Key Types
//
// QueueItem: transport representation of an upload queue row, annotated with
// the owning record's title and upload status.
//
// Record: a synchronized record with its denormalized upload status and
// remote folder reference.
//
// WorkflowStatus: worker running state, queue and upload counts, last item,
// and the most recent drain pass.
//
// DaemonStatus: aggregated runtime information including dependencies.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers. Internal
// enums (queue.Status, queue.UploadStatus) are exposed as lowercase strings.
// Timestamps use RFC3339 with milliseconds.
package api
