// Package params defines the discovery parameters value object: parsing of
// operator input, validation, and the per-category fingerprints that gate
// session resume.
package params
