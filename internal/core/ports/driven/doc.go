// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the agent to function:
//
//   - CloudProvider: One storage backend (upload/download/delete/verify/refresh/authenticate)
//   - TaskStore: Backup task and history persistence
//   - ControlChannel: The outbound half of the coordinator connection
//   - Cipher: Encryption of backup artifacts
//   - Archiver: Directory packing and unpacking
//
// # Optional Interfaces
//
// These can be nil - the agent degrades gracefully:
//
//   - Notifier: Error email on fatal connection exhaustion. Without it,
//     exhaustion is only logged before the process terminates.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or provider package
package driven
