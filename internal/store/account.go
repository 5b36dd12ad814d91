package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/campuslink/apiserver/types"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// AccountRepository handles persistence for accounts.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (types.Account, error) {
	const query = `
		SELECT email, password_hash, name, birth, student_id, sex, phone, avatar_key, created_at, updated_at
		FROM accounts
		WHERE email = $1`
	var account types.Account
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&account.Email,
		&account.PasswordHash,
		&account.Name,
		&account.Birth,
		&account.StudentID,
		&account.Sex,
		&account.Phone,
		&account.AvatarKey,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, err
	}
	return account, nil
}

func (r *AccountRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *AccountRepository) ExistsByStudentID(ctx context.Context, studentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM accounts WHERE student_id = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, studentID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Create inserts a new account. Unique constraint collisions surface as
// ErrDuplicateEmail or ErrDuplicateStudentID so callers can report the
// offending field even when a concurrent signup slipped past the pre-check.
func (r *AccountRepository) Create(ctx context.Context, account types.Account) (types.Account, error) {
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	const query = `
		INSERT INTO accounts (email, password_hash, name, birth, student_id, sex, phone, avatar_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		account.Email,
		account.PasswordHash,
		account.Name,
		account.Birth,
		account.StudentID,
		account.Sex,
		account.Phone,
		account.AvatarKey,
		account.CreatedAt,
		account.UpdatedAt,
	); err != nil {
		return types.Account{}, translateDuplicate(err)
	}
	return account, nil
}

// Update persists the mutable fields of an account, keyed by email. Email,
// name, sex and student ID are immutable and deliberately not part of the
// SET list.
func (r *AccountRepository) Update(ctx context.Context, account types.Account) (types.Account, error) {
	account.UpdatedAt = time.Now()

	const query = `
		UPDATE accounts
		SET password_hash = $1,
			birth = $2,
			phone = $3,
			avatar_key = $4,
			updated_at = $5
		WHERE email = $6`
	result, err := r.db.ExecContext(
		ctx,
		query,
		account.PasswordHash,
		account.Birth,
		account.Phone,
		account.AvatarKey,
		account.UpdatedAt,
		account.Email,
	)
	if err != nil {
		return types.Account{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Account{}, err
	}
	if affected == 0 {
		return types.Account{}, ErrNotFound
	}
	return account, nil
}

func translateDuplicate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return err
	}
	switch pqErr.Constraint {
	case "accounts_pkey":
		return ErrDuplicateEmail
	case "accounts_student_id_key":
		return ErrDuplicateStudentID
	}
	return err
}
