// Package middleware exposes HTTP guards that accept the final credential
// issued by goMFA.Engine after a completed login.
//
// # Guards
//
//   - [Guard] accepts any valid credential.
//   - [RequireMFA] also requires that a second factor was passed.
//   - [RequireAMR] requires specific authentication method references.
//
// Each guard reads the Authorization bearer token, calls
// Engine.ParseCredential and injects the claims into the request context.
//
// # What this package must NOT do
//
//   - Parse or sign JWTs directly. The engine owns the keys.
//   - Access the method store.
package middleware
