// Package core implements the connector credential lifecycle: a registry of
// vendor connectors, tenant-scoped credential storage with optional at-rest
// encryption, OAuth callback state tracking, and a retry runner for vendor
// calls. The Service type is the main entry point; the command and query
// packages wrap it for boundary use.
package core
