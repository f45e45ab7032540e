// Package ipc exposes the daemon over JSON-RPC on a Unix domain socket.
//
// The server registers a single "CaptureSync" service whose methods map onto
// daemon operations; the client wraps each call and stamps a request id that
// the server logs as the correlation id. Request and response types reuse the
// api package DTOs so the CLI renders the same shapes the HTTP API returns.
package ipc
