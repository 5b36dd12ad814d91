package types

import "time"

// Account represents a member identity record. The email address and the
// student ID are each globally unique; the email is the immutable identifier
// used everywhere else in the system.
type Account struct {
	// Email is the unique, immutable identifier of the account.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the hashed representation of the member's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Name is the member's display or full name.
	Name string `json:"name" db:"name"`

	// Birth is the member's birth date (YYYY-MM-DD).
	Birth string `json:"birth" db:"birth"`

	// StudentID is the unique student number of the member.
	StudentID string `json:"student_id" db:"student_id"`

	// Sex is the member's self-reported sex.
	Sex string `json:"sex" db:"sex"`

	// Phone is the member's phone number.
	Phone string `json:"phone" db:"phone"`

	// AvatarKey is the object storage key of the member's avatar, if any.
	// Internal bookkeeping only, never serialized.
	AvatarKey string `json:"-" db:"avatar_key"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Profile is the outward-facing projection of an Account. It carries no
// password hash and doubles as the input shape for profile updates, of which
// only Phone and Birth are writable.
type Profile struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	Birth     string `json:"birth"`
	StudentID string `json:"student_id"`
	Sex       string `json:"sex"`
	Phone     string `json:"phone"`
}

// NewProfile projects an Account into its Profile view. It is the only path
// by which account data leaves the service.
func NewProfile(account Account) Profile {
	return Profile{
		Email:     account.Email,
		Name:      account.Name,
		Birth:     account.Birth,
		StudentID: account.StudentID,
		Sex:       account.Sex,
		Phone:     account.Phone,
	}
}

// SignUpRequest carries the raw signup fields. It is consumed to construct
// exactly one Account.
type SignUpRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Name      string `json:"name"`
	Birth     string `json:"birth"`
	StudentID string `json:"student_id"`
	Sex       string `json:"sex"`
	Phone     string `json:"phone"`
}

// PasswordChangeRequest carries the fields of a password change. It exists
// only for the duration of one operation and is never persisted.
type PasswordChangeRequest struct {
	CurrentPassword    string `json:"current_password"`
	NewPassword        string `json:"new_password"`
	NewPasswordConfirm string `json:"new_password_confirm"`
}

// Result reports the outcome of an operation whose failures are expected
// business outcomes rather than errors.
type Result struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// FieldRejection is a field-scoped validation rejection.
type FieldRejection struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AccountTag is a named label attached to an account by email.
type AccountTag struct {
	// ID is the unique identifier of the tag row.
	ID int64 `json:"id" db:"id"`

	// Email references the tagged account.
	Email string `json:"email" db:"email"`

	// TagName is the label text.
	TagName string `json:"tag_name" db:"tag_name"`

	// CreatedAt is the timestamp when the tag was attached.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
