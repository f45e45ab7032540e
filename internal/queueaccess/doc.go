// Package queueaccess gives CLI commands one queue API whether or not the
// daemon is running. Calls go over IPC when the socket answers and straight to
// the database otherwise; in the latter case nothing wakes the worker, so work
// queued offline is picked up on the daemon's next start.
package queueaccess
