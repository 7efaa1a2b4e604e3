package main

// Default limits for CLI commands.
const (
	DefaultSearchLimit = 5
	DefaultAuditLimit  = 20
)
