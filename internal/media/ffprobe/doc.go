// Package ffprobe provides a typed wrapper around ffprobe JSON output for
// audio captures.
//
// Inspect executes ffprobe and returns the parsed Result; Prober adapts it to
// the duration lookup used when enumerating recordings.
package ffprobe
