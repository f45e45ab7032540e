// Package daemon coordinates the long-running capturesync process.
//
// It wires configuration, queue storage, the upload workflow manager, the
// notes watcher, and the optional HTTP status API into a single lifecycle with
// flock-based locking to prevent multiple instances. The daemon exposes the
// operations the IPC server and CLI need: enqueueing records, retrying failed
// uploads, inspecting records, replaying status events, and the integrity pass.
//
// Keep orchestration logic here: upload steps live in workflow and storage in
// queue while the daemon focuses on startup, shutdown, and high level
// coordination.
package daemon
