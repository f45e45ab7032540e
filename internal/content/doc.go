// Package content decides whether a record has anything to upload and
// enumerates exactly which artifacts qualify.
//
// The Validator scans the record's date bucket, asks the resolver for
// candidate directories, and collects whitelisted note and audio files across
// all of them. Content found away from the canonical directory is reported as
// an issue rather than a failure. When no files exist, database-held note
// text is offered as an inline note so late note exports do not stall uploads.
package content
