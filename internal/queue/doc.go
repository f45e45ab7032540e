// Package queue persists upload queue items and the records they synchronize
// in SQLite.
//
// The Store owns two kinds of state: the upload_queue table (one row per
// record, mutated only through atomic status transitions) and the
// denormalized upload status columns on the records table that external
// readers poll for badges. Every transition is a single UPDATE so the drain
// loop never needs in-process row locks.
//
// Timestamps are stored as fixed-width UTC strings so SQL comparisons such as
// available_at <= now and uploaded_at < created_at order correctly.
//
// Schema changes bump the version in schema.go; users delete the database to
// adopt the new schema.
package queue
