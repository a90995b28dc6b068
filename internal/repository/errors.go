// Package repository defines the MySQL data access layer and the error
// values shared by its repositories.  Callers should match with errors.Is;
// the underlying driver error is wrapped where it carries useful context.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row.  Services translate
// it into their own not-found error (HTTP 404 or a websocket denial).
var ErrNotFound = errors.New("not found")
