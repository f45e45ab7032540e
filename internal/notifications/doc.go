// Package notifications fans upload status transitions out to observers.
//
// The Dispatcher accepts events without ever blocking the upload worker: it
// buffers them in a bounded channel and a single goroutine hands each one to
// the in-process Broadcaster (live subscribers plus a ring of recent events
// for the CLI and API) and, for the transitions operators care about, to the
// ntfy Service. A full buffer drops the event with a warning and sink errors
// are logged and swallowed.
//
// The ntfy Service degrades to a no-op when no topic is configured.
package notifications
