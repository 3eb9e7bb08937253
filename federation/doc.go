// Package federation implements authkit.IdentityVerifier for Google and
// GitHub using standard OAuth 2.0 authorization-code exchange.
//
// Each verifier exchanges the provider callback code for an access token,
// fetches the upstream profile, and returns a verified [authkit.Identity].
// Email verification status is taken from the provider and never assumed.
//
// The verifiers only translate provider responses; account binding
// decisions stay in the engine.
package federation
