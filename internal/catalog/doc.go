// Package catalog models the remote music catalog and provides two clients:
// a REST client built on resty, and an in-memory catalog that loads YAML
// fixtures for offline runs and tests.
package catalog
