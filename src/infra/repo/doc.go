// Package repo contains PostgreSQL implementations of repository interfaces.
//
// This package implements the ports defined in src/core/ports.
// RoundRepository owns rounds and round_participants; it reads users
// for usernames and roles but never writes them.
//
// Tap writes run through InTapTx, which opens a serializable transaction
// bounded by db.TxOptions. Conflicts the database resolves by aborting
// (serialization failure, deadlock, lock timeout) surface as errors and
// are not retried here.
package repo
