// Package services defines shared utilities consumed by the upload worker and
// the remote storage integrations.
//
// Key responsibilities:
//   - Context helpers that stamp queue item IDs, record IDs, stage names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper for component errors.
//   - The closed FailureKind set and UploadError, constructed where a remote
//     call is made so the worker can decide between retry, free partial retry,
//     and waiting for re-authentication without matching on error text.
package services
