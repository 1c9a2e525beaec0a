package snapshot

// ArtifactName is the object name every snapshot is published under. The
// spelling matches objects written by earlier releases and must not change
// without a migration.
const ArtifactName = "snaphot.tar.gz"

// DeriveKey computes the destination object key for filename under prefix.
// An empty prefix yields filename unchanged; otherwise the two are joined
// with a single "/" and no further normalisation is applied, so a prefix
// ending in "/" produces a double separator.
func DeriveKey(prefix, filename string) string {
	if prefix == "" {
		return filename
	}
	return prefix + "/" + filename
}
