// Package secret defines the data model shared by the reconciliation engine
// and its backends.
//
// This package contains types, the error taxonomy and the value encoding
// only. All other internal packages import secret; secret imports nothing
// internal.
//
// Key design constraints:
//   - Versions are opaque strings and are compared with string equality only
//   - Plans and results are rebuilt on every run, nothing here is cached
//   - Payloads never appear in error messages or String output
package secret
