// Package middleware exposes HTTP middleware adapters built on top of
// authkit.Engine access-token validation.
//
//   - [RequireAuth] rejects requests without a valid access token and
//     injects the verified claims into the request context.
//   - [RequireRole] additionally enforces a role.
//
// This package translates HTTP semantics into Engine calls; it never
// parses tokens itself and never touches the stores.
package middleware
