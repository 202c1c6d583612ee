package vcs

// Hasher computes the display fingerprint recorded with each version.
// Fingerprints include a time component, so two fingerprints of the same
// bytes usually differ. Never use them to compare content.
type Hasher interface {
	Fingerprint(path string) (string, error)
}
