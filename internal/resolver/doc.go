// Package resolver locates the on-disk directories that may hold a record's
// artifacts.
//
// Resolve is a pure function over a Bucket snapshot (a date directory and the
// file names of its children) so renamed folders can be matched without any
// I/O. ScanBucket builds the snapshot from an fs.FS.
package resolver
