// Package statements defines the core session types, classification rules,
// and service interfaces shared across the backend subsystems.
package statements
