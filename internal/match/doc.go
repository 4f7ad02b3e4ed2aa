// Package match finds external authority identities for unlinked catalog
// records.
//
// Matching is strategy-driven: an ordered list of data-only Strategy
// descriptors, each naming a candidate provider, a query template and a
// matcher. Strategies run in order over every catalogued item of a record;
// the first registry-backed match wins and ends the search. Cluster-only
// matches (a VIAF cluster with no registry heading) are remembered as a
// fallback but never terminate the search, since a later strategy may still
// produce a registry-backed identity.
package match
