// Package verify implements the link-verification state machines.
//
// The forward run (Processor) walks every local catalog record that carries
// a registry link, fetches the registry record and repairs what can be
// repaired safely: replaced records are relinked (one hop), missing reverse
// links are backfilled, exact duplicate links are removed. Anything
// ambiguous — type mismatches, multiple replacement candidates, one-to-many
// links, two live records claiming the same identity — is surfaced in a
// report and left for a human.
//
// The reverse run (ReverseProcessor) walks a harvested dump of the registry
// and checks the links pointing back: links to deleted catalog records are
// repaired through rediscovery by name and year, or reported with
// suggestions.
//
// Both runs are single-threaded and resumable. Every record is processed
// independently; a per-record failure becomes a report row, never an
// aborted batch. Re-running over an already consistent pair is a no-op.
package verify
