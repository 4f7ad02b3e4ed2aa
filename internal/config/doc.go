// Package config loads and validates the seiso configuration from TOML.
//
// Configuration covers the local catalog database, the Noraf registry
// endpoints and API key, the candidate provider endpoints, report and
// checkpoint directories, the reverse-run harvest directory, rate limiting,
// and logging. Load applies defaults first, so a partial file only needs the
// values it overrides. Paths support ~ expansion.
package config
