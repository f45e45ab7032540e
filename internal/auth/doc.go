// Package auth owns remote credentials: the OAuth client secrets, the stored
// user token, the installed-app login flow, and the Connector the upload
// worker calls to obtain an authenticated upload.Remote.
//
// Refreshed tokens are written back to disk as they rotate. A missing or
// rejected token surfaces as services.ErrAuthExpired so the worker parks the
// item instead of burning its retry budget.
package auth
