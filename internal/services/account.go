package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/campuslink/apiserver/internal/events"
	"github.com/campuslink/apiserver/internal/storage"
	"github.com/campuslink/apiserver/internal/store"
	"github.com/campuslink/apiserver/types"
	"github.com/google/uuid"
)

// CredentialStore defines persistence operations for accounts.
type CredentialStore interface {
	GetByEmail(ctx context.Context, email string) (types.Account, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByStudentID(ctx context.Context, studentID string) (bool, error)
	Create(ctx context.Context, account types.Account) (types.Account, error)
	Update(ctx context.Context, account types.Account) (types.Account, error)
}

// TagStore defines read access to account tags.
type TagStore interface {
	ListByEmail(ctx context.Context, email string) ([]types.AccountTag, error)
}

// PasswordHasher hashes plaintext passwords and verifies them against
// stored hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// TokenProvider extracts a bearer token from a raw header value and resolves
// it to an email claim.
type TokenProvider interface {
	ExtractToken(headerValue string) (string, error)
	ResolveEmail(token string) (string, error)
}

// AccountService encapsulates account use-cases: registration, credential
// checks, token-bound profile access, password changes, tags and avatars.
type AccountService struct {
	store   CredentialStore
	tags    TagStore
	hasher  PasswordHasher
	tokens  TokenProvider
	events  *events.Publisher
	avatars *storage.Storage
	logger  *slog.Logger
}

func NewAccountService(
	store CredentialStore,
	tags TagStore,
	hasher PasswordHasher,
	tokens TokenProvider,
	publisher *events.Publisher,
	avatars *storage.Storage,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		store:   store,
		tags:    tags,
		hasher:  hasher,
		tokens:  tokens,
		events:  publisher,
		avatars: avatars,
		logger:  logger.With("component", "account_service"),
	}
}

// Join hashes the signup password and persists a new account. Uniqueness of
// email and student ID is pre-checked by SignUpValidator in the caller's
// control flow; the store's unique constraints remain the backstop, so a
// concurrent duplicate still comes back as store.ErrDuplicateEmail or
// store.ErrDuplicateStudentID.
func (s *AccountService) Join(ctx context.Context, req types.SignUpRequest) error {
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	account, err := s.store.Create(ctx, types.Account{
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		Birth:        req.Birth,
		StudentID:    req.StudentID,
		Sex:          req.Sex,
		Phone:        req.Phone,
	})
	if err != nil {
		return err
	}

	s.logger.Info("account created", "email", account.Email, "student_id", account.StudentID)
	s.events.AccountRegistered(ctx, account)
	return nil
}

// CheckAccount verifies email existence, then the password against the stored
// hash. It returns true only when both gates pass; each failure mode carries
// its own error so callers can distinguish them in logs while presenting a
// single unauthorized response.
func (s *AccountService) CheckAccount(ctx context.Context, email, password string) (bool, error) {
	account, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, ErrAccountNotFound
		}
		return false, err
	}
	if !s.hasher.Verify(password, account.PasswordHash) {
		return false, ErrCredentialMismatch
	}
	return true, nil
}

// ResolveAccount turns a raw Authorization header value into the live account
// it identifies. Every failure along the way collapses into
// ErrIdentityResolution: a bad header, an invalid or expired token, and a
// claim whose account no longer exists are indistinguishable to callers.
// The result is resolved fresh on every call and never cached; tokens may be
// rotated and accounts deleted between requests.
func (s *AccountService) ResolveAccount(ctx context.Context, header string) (types.Account, error) {
	token, err := s.tokens.ExtractToken(header)
	if err != nil {
		return types.Account{}, fmt.Errorf("%w: %w", ErrIdentityResolution, err)
	}
	email, err := s.tokens.ResolveEmail(token)
	if err != nil {
		return types.Account{}, fmt.Errorf("%w: %w", ErrIdentityResolution, err)
	}
	account, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Account{}, fmt.Errorf("%w: no account for token claim", ErrIdentityResolution)
		}
		return types.Account{}, err
	}
	return account, nil
}

// GetProfile resolves the caller and projects the account to its profile view.
func (s *AccountService) GetProfile(ctx context.Context, header string) (types.Profile, error) {
	account, err := s.ResolveAccount(ctx, header)
	if err != nil {
		return types.Profile{}, err
	}
	return types.NewProfile(account), nil
}

// ProfileByEmail returns the profile view for a known email.
func (s *AccountService) ProfileByEmail(ctx context.Context, email string) (types.Profile, error) {
	account, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Profile{}, ErrAccountNotFound
		}
		return types.Profile{}, err
	}
	return types.NewProfile(account), nil
}

// UpdateProfile overwrites only the phone and birth fields from the supplied
// profile. Everything else in the input, email and student ID included, is
// silently ignored.
func (s *AccountService) UpdateProfile(ctx context.Context, header string, profile types.Profile) (types.Profile, error) {
	account, err := s.ResolveAccount(ctx, header)
	if err != nil {
		return types.Profile{}, err
	}

	account.Phone = profile.Phone
	account.Birth = profile.Birth

	updated, err := s.store.Update(ctx, account)
	if err != nil {
		return types.Profile{}, err
	}
	return types.NewProfile(updated), nil
}

// ChangePassword applies the ordered password-change gates. Gate failures are
// expected user-correctable outcomes and come back as a Result value, never
// as an error; only resolution and persistence failures are errors.
func (s *AccountService) ChangePassword(ctx context.Context, req types.PasswordChangeRequest, header string) (types.Result, error) {
	account, err := s.ResolveAccount(ctx, header)
	if err != nil {
		return types.Result{}, err
	}

	if !s.hasher.Verify(req.CurrentPassword, account.PasswordHash) {
		return types.Result{Code: 400, Message: "current password does not match"}, nil
	}
	if req.NewPassword != req.NewPasswordConfirm {
		return types.Result{Code: 400, Message: "new password confirmation mismatch"}, nil
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return types.Result{}, fmt.Errorf("hash password: %w", err)
	}
	account.PasswordHash = hash
	if _, err := s.store.Update(ctx, account); err != nil {
		return types.Result{}, err
	}

	s.logger.Info("password changed", "email", account.Email)
	s.events.PasswordChanged(ctx, account.Email)
	return types.Result{Code: 200, Message: "password changed"}, nil
}

// Tags resolves the caller and returns the tag names attached to the account.
func (s *AccountService) Tags(ctx context.Context, header string) ([]string, error) {
	account, err := s.ResolveAccount(ctx, header)
	if err != nil {
		return nil, err
	}

	tags, err := s.tags.ListByEmail(ctx, account.Email)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.TagName)
	}
	return names, nil
}

// UploadAvatar stores a new avatar object for the caller and returns its key.
// A previously stored avatar is deleted best-effort after the account row
// points at the new object.
func (s *AccountService) UploadAvatar(ctx context.Context, header string, r io.Reader, size int64, contentType string) (string, error) {
	if s.avatars == nil {
		return "", ErrAvatarsDisabled
	}
	account, err := s.ResolveAccount(ctx, header)
	if err != nil {
		return "", err
	}

	key := "avatars/" + uuid.NewString()
	if err := s.avatars.Put(ctx, key, r, size, contentType); err != nil {
		return "", fmt.Errorf("store avatar: %w", err)
	}

	previous := account.AvatarKey
	account.AvatarKey = key
	if _, err := s.store.Update(ctx, account); err != nil {
		_ = s.avatars.Delete(ctx, key)
		return "", err
	}

	if previous != "" {
		if err := s.avatars.Delete(ctx, previous); err != nil {
			s.logger.Warn("failed to delete replaced avatar", "key", previous, "error", err)
		}
	}
	return key, nil
}

// OpenAvatar opens the caller's stored avatar for reading.
func (s *AccountService) OpenAvatar(ctx context.Context, header string) (io.ReadCloser, error) {
	if s.avatars == nil {
		return nil, ErrAvatarsDisabled
	}
	account, err := s.ResolveAccount(ctx, header)
	if err != nil {
		return nil, err
	}
	if account.AvatarKey == "" {
		return nil, ErrAvatarNotFound
	}
	return s.avatars.Get(ctx, account.AvatarKey)
}

// DeleteAvatar removes the caller's stored avatar.
func (s *AccountService) DeleteAvatar(ctx context.Context, header string) error {
	if s.avatars == nil {
		return ErrAvatarsDisabled
	}
	account, err := s.ResolveAccount(ctx, header)
	if err != nil {
		return err
	}
	if account.AvatarKey == "" {
		return ErrAvatarNotFound
	}

	if err := s.avatars.Delete(ctx, account.AvatarKey); err != nil {
		return fmt.Errorf("delete avatar: %w", err)
	}
	account.AvatarKey = ""
	_, err = s.store.Update(ctx, account)
	return err
}
