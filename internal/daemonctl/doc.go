// Package daemonctl starts and stops a background capturesync daemon.
//
// Start re-executes the current binary with the daemon subcommand in a new
// session and waits for the IPC socket to answer. Stop signals the process
// recorded in the pid file, escalating to SIGKILL after a grace period.
package daemonctl
