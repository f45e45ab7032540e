// Package preflight provides readiness checks for the filesystem paths,
// credentials, and binaries that capturesync depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs every failure so a broken
//     install is visible before the first upload attempt.
//   - The CLI "capturesync status" command renders the same results next to
//     the queue summary.
//
// Each check is gated by its config toggle; disabled features are skipped.
package preflight
