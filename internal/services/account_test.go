package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/campuslink/apiserver/internal/auth"
	"github.com/campuslink/apiserver/internal/storage"
	"github.com/campuslink/apiserver/internal/store"
	"github.com/campuslink/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCredentialStore is an in-memory CredentialStore enforcing the same
// uniqueness rules as the real schema.
type fakeCredentialStore struct {
	accounts map[string]types.Account
}

func newFakeCredentialStore() *fakeCredentialStore {
	return &fakeCredentialStore{accounts: map[string]types.Account{}}
}

func (f *fakeCredentialStore) GetByEmail(ctx context.Context, email string) (types.Account, error) {
	account, ok := f.accounts[email]
	if !ok {
		return types.Account{}, store.ErrNotFound
	}
	return account, nil
}

func (f *fakeCredentialStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, ok := f.accounts[email]
	return ok, nil
}

func (f *fakeCredentialStore) ExistsByStudentID(ctx context.Context, studentID string) (bool, error) {
	for _, account := range f.accounts {
		if account.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCredentialStore) Create(ctx context.Context, account types.Account) (types.Account, error) {
	if _, ok := f.accounts[account.Email]; ok {
		return types.Account{}, store.ErrDuplicateEmail
	}
	for _, existing := range f.accounts {
		if existing.StudentID == account.StudentID {
			return types.Account{}, store.ErrDuplicateStudentID
		}
	}
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	f.accounts[account.Email] = account
	return account, nil
}

func (f *fakeCredentialStore) Update(ctx context.Context, account types.Account) (types.Account, error) {
	stored, ok := f.accounts[account.Email]
	if !ok {
		return types.Account{}, store.ErrNotFound
	}
	stored.PasswordHash = account.PasswordHash
	stored.Birth = account.Birth
	stored.Phone = account.Phone
	stored.AvatarKey = account.AvatarKey
	stored.UpdatedAt = time.Now()
	f.accounts[account.Email] = stored
	return stored, nil
}

type fakeTagStore struct {
	tags map[string][]types.AccountTag
}

func (f *fakeTagStore) ListByEmail(ctx context.Context, email string) ([]types.AccountTag, error) {
	return f.tags[email], nil
}

// fakeHasher makes hashes deterministic so tests can assert on them.
type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (fakeHasher) Verify(password, hash string) bool {
	return hash == "hashed:"+password
}

// memObjectStorage is an in-memory storage.ObjectStorage backend.
type memObjectStorage struct {
	objects map[string][]byte
}

func newMemObjectStorage() *memObjectStorage {
	return &memObjectStorage{objects: map[string][]byte{}}
}

func (m *memObjectStorage) EnsureBucket(ctx context.Context) error { return nil }

func (m *memObjectStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memObjectStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memObjectStorage) Delete(ctx context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memObjectStorage) Bucket() string { return "test" }

type serviceFixture struct {
	service *AccountService
	store   *fakeCredentialStore
	tokens  *auth.JWTProvider
	objects *memObjectStorage
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	credStore := newFakeCredentialStore()
	tokens := auth.NewJWTProvider("test-secret", time.Hour)
	objects := newMemObjectStorage()
	tags := &fakeTagStore{tags: map[string][]types.AccountTag{
		"member@campuslink.io": {
			{ID: 1, Email: "member@campuslink.io", TagName: "backend"},
			{ID: 2, Email: "member@campuslink.io", TagName: "mentoring"},
		},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	service := NewAccountService(credStore, tags, fakeHasher{}, tokens, nil, storage.NewStorage(objects), logger)
	return &serviceFixture{service: service, store: credStore, tokens: tokens, objects: objects}
}

func signUpFixture() types.SignUpRequest {
	return types.SignUpRequest{
		Email:     "member@campuslink.io",
		Password:  "hunter2hunter2",
		Name:      "Kim Jiwoo",
		Birth:     "2002-03-14",
		StudentID: "20260001",
		Sex:       "F",
		Phone:     "010-1234-5678",
	}
}

func (f *serviceFixture) join(t *testing.T) {
	t.Helper()
	require.NoError(t, f.service.Join(context.Background(), signUpFixture()))
}

func (f *serviceFixture) authHeader(t *testing.T, email string) string {
	t.Helper()
	token, err := f.tokens.Issue(email)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestJoinHashesPasswordBeforeStorage(t *testing.T) {
	f := newServiceFixture(t)
	f.join(t)

	stored, err := f.store.GetByEmail(context.Background(), "member@campuslink.io")
	require.NoError(t, err)
	assert.Equal(t, "hashed:hunter2hunter2", stored.PasswordHash)
	assert.Equal(t, "20260001", stored.StudentID)
	assert.Equal(t, "Kim Jiwoo", stored.Name)
}

func TestJoinSurfacesStoreDuplicates(t *testing.T) {
	f := newServiceFixture(t)
	f.join(t)

	err := f.service.Join(context.Background(), signUpFixture())
	assert.ErrorIs(t, err, store.ErrDuplicateEmail)

	other := signUpFixture()
	other.Email = "other@campuslink.io"
	err = f.service.Join(context.Background(), other)
	assert.ErrorIs(t, err, store.ErrDuplicateStudentID)
}

func TestCheckAccount(t *testing.T) {
	f := newServiceFixture(t)
	f.join(t)
	ctx := context.Background()

	ok, err := f.service.CheckAccount(ctx, "member@campuslink.io", "hunter2hunter2")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.service.CheckAccount(ctx, "missing@campuslink.io", "hunter2hunter2")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = f.service.CheckAccount(ctx, "member@campuslink.io", "wrong password")
	assert.ErrorIs(t, err, ErrCredentialMismatch)
}

func TestResolveAccount(t *testing.T) {
	f := newServiceFixture(t)
	f.join(t)
	ctx := context.Background()
	header := f.authHeader(t, "member@campuslink.io")

	first, err := f.service.ResolveAccount(ctx, header)
	require.NoError(t, err)
	assert.Equal(t, "member@campuslink.io", first.Email)

	// Same valid header resolves to the same account on repeat calls.
	second, err := f.service.ResolveAccount(ctx, header)
	require.NoError(t, err)
	assert.Equal(t, first.Email, second.Email)
}

func TestResolveAccountFailures(t *testing.T) {
	f := newServiceFixture(t)
	f.join(t)
	ctx := context.Background()

	for name, header := range map[string]string{
		"missing header":   "",
		"not bearer":       "Basic Zm9vOmJhcg==",
		"garbage token":    "Bearer not.a.jwt",
		"foreign claimant": f.authHeader(t, "ghost@campuslink.io"),
	} {
		_, err := f.service.ResolveAccount(ctx, header)
		assert.ErrorIs(t, err, ErrIdentityResolution, name)
	}

	expired := auth.NewJWTProvider("test-secret", -time.Minute)
	token, err := expired.Issue("member@campuslink.io")
	require.NoError(t, err)
	_, err = f.service.ResolveAccount(ctx, "Bearer "+token)
	assert.ErrorIs(t, err, ErrIdentityResolution)
}

func TestGetProfileProjectsAccount(t *testing.T) {
	f := newServiceFixture(t)
	f.join(t)

	profile, err := f.service.GetProfile(context.Background(), f.authHeader(t, "member@campuslink.io"))
	require.NoError(t, err)
	assert.Equal(t, types.Profile{
		Email:     "member@campuslink.io",
		Name:      "Kim Jiwoo",
		Birth:     "2002-03-14",
		StudentID: "20260001",
		Sex:       "F",
		Phone:     "010-1234-5678",
	}, profile)
}

func TestUpdateProfileOnlyTouchesPhoneAndBirth(t *testing.T) {
	f := newServiceFixture(t)
	f.join(t)
	ctx := context.Background()

	updated, err := f.service.UpdateProfile(ctx, f.authHeader(t, "member@campuslink.io"), types.Profile{
		Email:     "attacker@evil.io",
		Name:      "Someone Else",
		StudentID: "99999999",
		Sex:       "M",
		Birth:     "2001-01-01",
		Phone:     "010-9999-0000",
	})
	require.NoError(t, err)

	assert.Equal(t, "member@campuslink.io", updated.Email)
	assert.Equal(t, "Kim Jiwoo", updated.Name)
	assert.Equal(t, "20260001", updated.StudentID)
	assert.Equal(t, "F", updated.Sex)
	assert.Equal(t, "2001-01-01", updated.Birth)
	assert.Equal(t, "010-9999-0000", updated.Phone)

	stored, err := f.store.GetByEmail(ctx, "member@campuslink.io")
	require.NoError(t, err)
	assert.Equal(t, "20260001", stored.StudentID)
	assert.Equal(t, "010-9999-0000", stored.Phone)
}

func TestChangePassword(t *testing.T) {
	f := newServiceFixture(t)
	f.join(t)
	ctx := context.Background()
	header := f.authHeader(t, "member@campuslink.io")

	result, err := f.service.ChangePassword(ctx, types.PasswordChangeRequest{
		CurrentPassword:    "hunter2hunter2",
		NewPassword:        "correct-horse-battery",
		NewPasswordConfirm: "correct-horse-battery",
	}, header)
	require.NoError(t, err)
	assert.Equal(t, types.Result{Code: 200, Message: "password changed"}, result)

	ok, err := f.service.CheckAccount(ctx, "member@campuslink.io", "correct-horse-battery")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.service.CheckAccount(ctx, "member@campuslink.io", "hunter2hunter2")
	assert.ErrorIs(t, err, ErrCredentialMismatch)
}

func TestChangePasswordWrongCurrentLeavesStoreUntouched(t *testing.T) {
	f := newServiceFixture(t)
	f.join(t)
	ctx := context.Background()

	result, err := f.service.ChangePassword(ctx, types.PasswordChangeRequest{
		CurrentPassword:    "not the password",
		NewPassword:        "correct-horse-battery",
		NewPasswordConfirm: "correct-horse-battery",
	}, f.authHeader(t, "member@campuslink.io"))
	require.NoError(t, err)
	assert.Equal(t, types.Result{Code: 400, Message: "current password does not match"}, result)

	stored, err := f.store.GetByEmail(ctx, "member@campuslink.io")
	require.NoError(t, err)
	assert.Equal(t, "hashed:hunter2hunter2", stored.PasswordHash)
}

func TestChangePasswordConfirmationMismatchLeavesStoreUntouched(t *testing.T) {
	f := newServiceFixture(t)
	f.join(t)
	ctx := context.Background()

	result, err := f.service.ChangePassword(ctx, types.PasswordChangeRequest{
		CurrentPassword:    "hunter2hunter2",
		NewPassword:        "correct-horse-battery",
		NewPasswordConfirm: "correct-horse-batter",
	}, f.authHeader(t, "member@campuslink.io"))
	require.NoError(t, err)
	assert.Equal(t, types.Result{Code: 400, Message: "new password confirmation mismatch"}, result)

	stored, err := f.store.GetByEmail(ctx, "member@campuslink.io")
	require.NoError(t, err)
	assert.Equal(t, "hashed:hunter2hunter2", stored.PasswordHash)
}

func TestChangePasswordRequiresIdentity(t *testing.T) {
	f := newServiceFixture(t)
	f.join(t)

	_, err := f.service.ChangePassword(context.Background(), types.PasswordChangeRequest{}, "Bearer bogus")
	assert.ErrorIs(t, err, ErrIdentityResolution)
}

func TestTags(t *testing.T) {
	f := newServiceFixture(t)
	f.join(t)

	names, err := f.service.Tags(context.Background(), f.authHeader(t, "member@campuslink.io"))
	require.NoError(t, err)
	assert.Equal(t, []string{"backend", "mentoring"}, names)
}

func TestAvatarLifecycle(t *testing.T) {
	f := newServiceFixture(t)
	f.join(t)
	ctx := context.Background()
	header := f.authHeader(t, "member@campuslink.io")

	_, err := f.service.OpenAvatar(ctx, header)
	assert.ErrorIs(t, err, ErrAvatarNotFound)

	key, err := f.service.UploadAvatar(ctx, header, bytes.NewReader([]byte("png bytes")), 9, "image/png")
	require.NoError(t, err)
	assert.Contains(t, f.objects.objects, key)

	rc, err := f.service.OpenAvatar(ctx, header)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "png bytes", string(data))

	// Replacing the avatar removes the old object.
	replaced, err := f.service.UploadAvatar(ctx, header, bytes.NewReader([]byte("new bytes")), 9, "image/png")
	require.NoError(t, err)
	assert.NotEqual(t, key, replaced)
	assert.NotContains(t, f.objects.objects, key)

	require.NoError(t, f.service.DeleteAvatar(ctx, header))
	assert.Empty(t, f.objects.objects)

	err = f.service.DeleteAvatar(ctx, header)
	assert.ErrorIs(t, err, ErrAvatarNotFound)
}

func TestAvatarsDisabledWithoutStorage(t *testing.T) {
	f := newServiceFixture(t)
	f.join(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewAccountService(f.store, &fakeTagStore{}, fakeHasher{}, f.tokens, nil, nil, logger)

	_, err := service.UploadAvatar(context.Background(), f.authHeader(t, "member@campuslink.io"), bytes.NewReader(nil), 0, "image/png")
	assert.ErrorIs(t, err, ErrAvatarsDisabled)
}
