// Package password implements credential hashing and verification with
// bcrypt.
//
// Hashes are standard bcrypt encoded strings carrying their own salt and
// cost, so verification needs no stored parameters.
//
// This package owns hashing and verification only. Password policy is
// enforced by the Engine, and plaintext never leaves the call stack.
package password
