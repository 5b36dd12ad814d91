package services

import "errors"

var (
	// ErrAccountNotFound is returned when no account exists for an email.
	ErrAccountNotFound = errors.New("account not found")

	// ErrCredentialMismatch is returned when a password fails verification
	// against the stored hash.
	ErrCredentialMismatch = errors.New("password is incorrect")

	// ErrIdentityResolution is returned when a bearer token is missing,
	// invalid, or its email claim no longer maps to a live account.
	ErrIdentityResolution = errors.New("identity resolution failed")

	// ErrAvatarNotFound is returned when the account has no stored avatar.
	ErrAvatarNotFound = errors.New("avatar not found")

	// ErrAvatarsDisabled is returned when no object storage is configured.
	ErrAvatarsDisabled = errors.New("avatar storage is not configured")
)
