// Package upload provisions remote folders and transfers record artifacts into
// them.
//
// The Provisioner resolves the root/date/record folder chain with
// find-before-create on every attempt and collapses concurrent identical
// lookups inside the process. The Synchronizer replaces remote files by name:
// existing matches are deleted before the new content is created, so a retry
// after a failure between the two calls converges on a single copy.
package upload
