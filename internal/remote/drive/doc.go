// Package drive implements upload.Remote on top of the Google Drive v3 API.
//
// Every failure leaving this package is tagged with a services.FailureKind via
// remote.Classify: rejected or revoked credentials become auth failures, everything
// else is transient.
package drive
