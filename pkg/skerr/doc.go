// Package skerr defines the sentinel error kinds shared by every skitter
// subsystem. Errors are constructed with fmt.Errorf("...: %w", ...) around
// these sentinels so callers can test kind membership with errors.Is while
// still getting a human-readable message, matching the wrapping convention
// used throughout this codebase's manager and worker packages.
package skerr
