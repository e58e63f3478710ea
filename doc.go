// Package auth provides the NewsShelf authentication primitives (JWT
// issuance and validation, the bun backed identity store, HTTP handlers)
// plus the role administration rules for ADMIN, PUBLISHER and READER.
//
// Tokens:
//   - TokenService issues HS256 tokens that carry the user id, email, display
//     name and every stored role under both the long schema role key and the
//     short "role" key. Validate is the only trust boundary; the claims
//     package decodes payloads for display without checking signatures.
//
// Role administration:
//   - Admin replaces the role set of an identity with exactly one role inside
//     a transaction. The configured main admin can neither be re-roled nor
//     deleted, and READER or PUBLISHER require at least one favorite topic.
//     Role changes show up in a token at the next login.
//
// Activity sinks:
//   - ActivitySink receives login, registration, profile, reading and admin
//     events. Sinks run best-effort (errors are logged) so you can forward to
//     a queue without blocking requests.
package auth
