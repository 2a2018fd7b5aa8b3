// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package auth

import "errors"

var (
	// ErrMissingToken is returned when a request carries no session token.
	ErrMissingToken = errors.New("missing session token")

	// ErrInvalidToken is returned when a session token fails verification.
	ErrInvalidToken = errors.New("invalid session token")

	// ErrUnknownUser is returned by a UserResolver for a valid session whose
	// user has no Lucyn account.
	ErrUnknownUser = errors.New("unknown user")

	// ErrStateMismatch is returned when the OAuth state query parameter does
	// not match the state cookie.
	ErrStateMismatch = errors.New("oauth state mismatch")

	// ErrDecryptionFailed indicates authentication of the ciphertext failed
	// (wrong key or tampered data).
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrInvalidCiphertext indicates the ciphertext is malformed.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
)
