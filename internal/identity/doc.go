// Package identity resolves the uploader device identity the locker
// attributes uploads to. An explicitly configured id wins; otherwise the id is
// minted once, persisted under the state directory, and reused by every later
// run.
package identity
