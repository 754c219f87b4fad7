// Package config loads, normalizes, and validates trawl configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TRAWL_CATALOG_TOKEN and REDIS_URL. Callers receive one Config that names
// the output tree, the state directory holding sessions and the track cache,
// and the catalog and checkpoint backends.
package config
