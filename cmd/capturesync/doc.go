// Command capturesync runs the upload daemon and talks to it over its IPC
// socket.
//
// Read-only queue and record commands fall back to opening the database
// directly when the daemon is not running, so operators can inspect state
// and queue work while it is stopped.
package main
