package service

import "errors"

// Token and login errors.  The HTTP layer maps each of them to a fixed
// status; see handler.AuthHandler.
var (
	// ErrDecodeToken means the token is malformed, foreign, or the wrong kind
	// (HTTP 400).
	ErrDecodeToken = errors.New("token could not be decoded")
	// ErrExpiredToken means the signature is valid but the token expired
	// (HTTP 400).
	ErrExpiredToken = errors.New("token expired")
	// ErrUnauthorized means a structurally valid refresh token whose chain
	// position was already consumed or purged (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUserNotFound is returned by Login for unknown usernames (HTTP 404).
	ErrUserNotFound = errors.New("user not found")
	// ErrIncorrectPassword is returned by Login on a password mismatch (HTTP 403).
	ErrIncorrectPassword = errors.New("incorrect password")
)
