// Package watch re-enqueues records whose notes arrive after their upload
// finalized as no_content.
//
// The capture application sometimes finishes exporting a note after the
// record was already processed. The watcher follows the notes tree with
// fsnotify, debounces bursts per date bucket, and re-validates the bucket's
// no_content records; any that now have content are enqueued again.
package watch
