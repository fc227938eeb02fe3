// Package method persists MFA methods and owns every mutation applied to
// them.
//
// # Model
//
// A [Method] is one (user, name) enrollment. A user's methods are loaded and
// mutated together as a [Set]. The set is the unit of atomicity: every
// [Registry] operation runs as one [Store.Mutate] call, and stores guarantee
// that Mutate is serializable per user.
//
// # Invariants
//
//   - At most one method per user has IsPrimary set.
//   - IsPrimary implies IsActive.
//   - A method that reached the active state carries backup codes.
//
// [Set.Validate] checks the first two after every mutation.
//
// # Stores
//
//   - [RedisStore]: one hash per user, WATCH/MULTI optimistic transactions.
//   - [MemoryStore]: process-local, for embedding and tests.
//   - pgstore.Store: PostgreSQL with a per-user advisory lock.
//
// # What this package must NOT do
//
//   - Verify codes or talk to delivery providers.
//   - Log secrets or backup codes.
package method
