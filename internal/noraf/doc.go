// Package noraf implements the national authority registry collaborator.
//
// Record wraps the registry's MARC-ish JSON representation and keeps the
// unrecognized parts of the payload intact, so a fetched record can be
// mutated in memory (identifier maps, MARC fields) and put back without
// dropping fields the engine does not model. Mutations set a dirty flag;
// Client.Put clears it after a successful write and appends a human-readable
// reason line to the update audit log.
//
// Summary is the lightweight view parsed from the MARCXML (marcxchange)
// representation used by SRU search responses and OAI-PMH harvest dumps.
package noraf
