// Package goMFA is a second-factor authentication engine. It sits behind a
// password check and decides when a user is fully authenticated.
//
// An [Engine] owns the lifecycle of each user's MFA methods (register,
// confirm, deactivate, change primary, regenerate backup codes) and the
// two-step login: a correct password either yields a final credential
// directly or, when the user has a primary method, a code dispatch plus a
// short-lived ephemeral token that is exchanged together with a code for
// the final credential.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goMFA is the public surface. Method state lives in a [method.Store]
// (Redis, PostgreSQL or memory). Delivery and validation per method type
// live in package backend. Code math, backup code generation and the
// ephemeral token format live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Expose secrets, codes or stored backup code hashes in return values
//     other than the one-time backup code batch handed to the user.
//   - Log codes, secrets, tokens or passwords.
//   - Retry failed operations. Every failure is reported to the caller.
//   - Pick a new primary method implicitly. Primary changes are explicit.
package goMFA
