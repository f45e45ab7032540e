// Package workflow runs the upload worker.
//
// A single Manager owns the drain loop: it claims the oldest claimable queue
// item, validates the record's local artifacts, provisions the remote folder
// chain, transfers notes then recordings, and finalizes the item and the
// record's upload status. Items are processed strictly one at a time and the
// sqlite queue is the only shared state.
//
// Failures are acted on by kind. Transient failures spend an attempt and
// block the loop for an exponential backoff before the next claim. Partial
// transfers get one free deferred retry. Expired credentials park the item
// without spending an attempt and end the pass. The Manager also performs
// startup recovery of interrupted items and the integrity pass that requeues
// records whose status contradicts what is on disk or in the database.
package workflow
