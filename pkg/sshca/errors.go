package sshca

import "errors"

var (
	// ErrUnsupportedSubjectKey indicates the subject key decoded to a
	// type other than ssh-ed25519.
	ErrUnsupportedSubjectKey = errors.New("sshca: unsupported subject key type")

	// ErrInvalidSubjectKey indicates the subject key could not be
	// parsed or has the wrong length.
	ErrInvalidSubjectKey = errors.New("sshca: invalid subject key")

	// ErrInvalidValidityWindow indicates valid_after is later than
	// valid_before.
	ErrInvalidValidityWindow = errors.New("sshca: invalid validity window")

	// ErrSigningUnavailable indicates the signing oracle failed or
	// returned a signature of unexpected length.
	ErrSigningUnavailable = errors.New("sshca: signing unavailable")
)
