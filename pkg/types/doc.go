// Package types defines the domain types, configuration, and standard
// errors shared by the taskbridge reconciliation engine and its store
// adapters.
package types
