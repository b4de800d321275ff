// Package domain contains the core domain model for round coordination.
//
// This package defines:
//   - Entities: Round, Participant, User, Principal
//   - The round state machine (StatusAt), a pure function of start, end and now
//   - The scoring policy table keyed by role
//   - Domain errors with stable codes for the transport layer
//
// Rules for this package:
//   - No infrastructure concerns (database, HTTP, coordination store)
//   - Status is always derived through StatusAt; a stored status is a cache
//   - Role special cases live in the scoring policy table, not in callers
package domain
