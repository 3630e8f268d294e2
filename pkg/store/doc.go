// Package store implements the content-addressed artifact store as seen by
// the evaluator and the value printer: store path parsing and printing,
// the nix-base32 hash dialect, and a SQLite registry of valid paths with
// embedded migrations.
package store
