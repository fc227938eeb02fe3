// Package backend delivers and validates MFA codes for each configured
// method.
//
// A [Handler] implements one method type: email, SMS through Twilio, SMSAPI
// or Amazon SNS, authenticator app, or YubiKey verified by YubiCloud. The
// [Dispatcher] maps configured method names to handlers and is built once at
// startup; an unknown handler reference is a configuration error.
//
// # Failure semantics
//
// Transport failures never escape Dispatch as errors. They are logged and
// returned as an [Outcome] with Success=false. Dispatch returns an error
// only for configuration problems discovered at use time, such as a user
// record without the destination attribute, and for store failures.
// Validation methods return false on any error (fail closed).
//
// # What this package must NOT do
//
//   - Write method records other than through [CounterStore].
//   - Log codes, secrets or provider credentials.
package backend
