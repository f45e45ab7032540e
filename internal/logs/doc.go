// Package logs reads the daemon's JSON run logs for the CLI.
//
// Last reads the final lines of a file with bounded memory. Follow then
// streams appended lines, waking on fsnotify write events with a polling
// fallback. Filter narrows lines to one record or a minimum level.
package logs
