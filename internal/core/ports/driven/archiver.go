package driven

// Archiver packs a directory tree into a single compressed artifact and
// unpacks it again. The archive format is opaque to the coordinator.
type Archiver interface {
	// Archive compresses the directory at sourceDir into archivePath.
	// The archive keeps paths relative to sourceDir.
	Archive(sourceDir, archivePath string) error

	// Extract unpacks archivePath into destDir, creating it if needed.
	Extract(archivePath, destDir string) error
}
