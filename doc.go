// Package authkit is the authentication and session lifecycle engine for
// the readshelf services: OTP-gated account creation, password login,
// dual-token issuance (short-lived access, long-lived refresh), server-side
// revocation through a rotating session id, and federated identity linking
// for Google and GitHub sign-in.
//
// The engine owns no persistent storage. It composes an external user
// store (the UserStore interface), a Redis-backed ephemeral store for OTP
// challenges and session records, and an asynchronous mail collaborator
// for OTP delivery. Construct it through the Builder.
package authkit
