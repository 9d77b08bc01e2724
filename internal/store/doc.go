// Package store provides SQLite-backed storage for game logs.
//
// One database file serves two roles:
//
//   - Local cache (client): one JSON snapshot per game plus a dirty flag.
//     A snapshot is written on every local change and marked dirty; the flag
//     is cleared only once a session confirms full synchronization.
//   - Authoritative log (reference server): the ordered actions of every
//     game. Appends are compare-and-swap on the head revision and idempotent
//     for retransmitted action ids.
//
// Ordering always uses the seq column, never timestamps.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - a single open connection, SQLite has one writer
package store
