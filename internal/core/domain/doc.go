// Package domain defines the core business entities for the Shelter agent.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - BackupTask: A persisted, recurring backup job
//   - BackupEntry: A record of one completed backup run
//   - Command / Response: Control-channel wire frames
//   - Frequency: Recurrence interval with calendar-safe rollover
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
