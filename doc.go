// Package auth implements the identity and access lifecycle for the
// Driftnote hosted journaling service: account registration, credential
// verification, session and bearer-token authentication, and the beta
// access program that gates the product while it is invite-only.
//
// Beta access lifecycle:
//   - Accounts carry a tri-state beta flag (unset, approved, denied with an
//     expiry). Review states such as "pending review" or "reapplicable" are
//     derived at read time from that flag plus email verification, never
//     stored. BetaStateMachine centralizes the transition graph, token
//     minting, reviewer notification, and persistence.
//   - Single-use action tokens (email verification, password reset, beta
//     decision) are opaque random strings; only a SHA-256 hash is stored,
//     with one slot per kind on the account record.
//
// Authentication:
//   - Auther verifies credentials and establishes server-side sessions
//     (cookie) or signed bearer tokens (Authorization header). Requests
//     resolve to a Principal that is either Anonymous or Authenticated.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther, the
//     state machine, and the lifecycle commands to describe registration,
//     login, verification, and beta decision events. Sinks run best-effort
//     (errors are logged) so you can forward to a database or queue without
//     blocking authentication.
package auth
