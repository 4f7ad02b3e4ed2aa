// Package bibbi implements the local catalog collaborator: authority records
// mirrored from the Promus database into SQLite, queried in bulk per
// reconciliation run and mutated one field-set at a time.
//
// Every mutation is logged. Updates that affect zero rows fail with
// ErrNoRowsUpdated because they imply the caller's view of the record was
// stale. A store opened read-only logs what it would have written and leaves
// the database untouched, which is how --dry-run is implemented.
package bibbi
