// Package jwt issues and verifies the final credential handed out once a
// user is fully authenticated.
//
// Credentials are short-lived JWTs signed with Ed25519 (default) or HS256.
// Each carries the user id, the authentication methods that produced it
// and a random jti. Verification pins the algorithm, checks issuer and
// audience when configured and supports kid-based key rotation.
//
// # What this package must NOT do
//
//   - Decide whether a user is authenticated. It only signs what the
//     engine tells it to.
//   - Store issued credentials or track revocation.
package jwt
