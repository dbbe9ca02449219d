// Package file loads the agent's TOML configuration from the local
// filesystem: coordinator endpoint, encryption key, notifier settings and
// per-provider credentials.
package file
