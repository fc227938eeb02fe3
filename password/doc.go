// Package password hashes and verifies secrets with Argon2id.
//
// It is used for two kinds of secrets: user passwords checked during the
// first authentication factor and MFA backup codes stored in hashed form.
//
// # Output format
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<key>
//
// # What this package must NOT do
//
//   - Store or retrieve secrets. Callers supply plaintext and receive hashes.
//   - Import any other goMFA package.
//   - Log plaintext input.
package password
