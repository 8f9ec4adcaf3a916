// Package teams provides multi-tenant team accounts with role based access
// control, invitation workflows, and audited super-admin impersonation.
//
// Policy engine:
//   - Role checks come in two flavors. Hierarchical checks (IsAtLeast) are used
//     for route-style guards. Membership mutations use exact capability
//     matrices instead: each role carries a fixed, non-inherited set of roles
//     it may assign, modify, and remove. Owners deliberately get a narrower
//     slice than "anything below them" would imply, so the two semantics are
//     never collapsed into a single numeric comparison.
//   - Every decision is pure and returns a structured denial (go-errors text
//     codes such as ROLE_FORBIDDEN or SELF_ACTION_FORBIDDEN) so callers can
//     surface permanent denials without retrying.
//
// Membership store:
//   - Repositories are Bun-backed and enforce the structural invariants
//     (single owner per team, composite member primary key) at the persistence
//     layer even when the policy engine already approved a write. Ownership
//     transfer demotes and promotes inside one transaction.
//
// Invitations:
//   - Invitations move pending -> accepted | revoked, with expiry treated as
//     revoked on access. Accepting an invite creates the membership and closes
//     the invite atomically; revocation is idempotent.
//
// Impersonation:
//   - Impersonator issues time-boxed identity-assumption sessions for
//     super-admin actors. The audit row is written before any credential is
//     minted, sessions carry a fixed non-extendable TTL, stop is idempotent,
//     and a session past its expiry is treated as ended on every read path
//     even when the close-out write lags.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the command
//     handlers and the Impersonator to describe role mutations, invitation
//     lifecycle, and impersonation events. Sinks run best-effort (errors are
//     logged) so you can forward to a database or queue without blocking the
//     request.
package teams
