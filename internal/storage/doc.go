// Package storage persists events, recurring templates, and user
// preferences. Two drivers exist: an in-memory store for tests and
// throwaway runs, and SQLite for real deployments. Both enforce the same
// write-time invariants (valid events, no overlapping intervals), so the
// scheduling core can trust whatever it reads back.
package storage
