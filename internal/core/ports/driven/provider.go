package driven

import "context"

// CloudProvider is one storage backend. Each vendor integration
// (gdrive, dropbox, aws, azure) implements this interface; the registry
// resolves an instance per call by provider id, so no ambient "current
// provider" state exists anywhere.
type CloudProvider interface {
	// ID returns the provider identifier used in task definitions.
	ID() string

	// Name returns the human-readable backend name for announcements.
	Name() string

	// Upload stores the artifact at localPath under the given destination
	// label and returns the backend-assigned backup identifier. The
	// identifier is opaque and unique only within this backend.
	Upload(ctx context.Context, localPath, destination string) (string, error)

	// Download retrieves the artifact with the given backup identifier
	// into localPath.
	Download(ctx context.Context, backupID, localPath string) error

	// Delete removes all objects associated with the backup identifier.
	// Backends differ on whether deleting an unknown id is an error;
	// callers that need idempotence must tolerate both.
	Delete(ctx context.Context, backupID string) error

	// VerifyConnection checks that the backend is reachable and the
	// current credentials are valid.
	VerifyConnection(ctx context.Context) error

	// RefreshToken renews short-lived credentials.
	RefreshToken(ctx context.Context) error

	// Authenticate performs a full re-authentication from configured
	// long-lived credentials.
	Authenticate(ctx context.Context) error
}
