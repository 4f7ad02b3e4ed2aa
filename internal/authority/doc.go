// Package authority holds the domain vocabulary shared across the
// reconciliation engine: record kinds, external identities, match candidates,
// and the canonical form of Bibbi cross-reference identifiers.
//
// Noraf stores its Bibbi cross-references in two historical forms, a bare
// numeric identifier ("407922") and a full URI
// ("https://id.bs.no/bibbi/407922"). Both denote the same record. The engine
// normalizes at the boundary: comparisons use the bare form (LocalID), writes
// use the URI form (LocalURI).
package authority
