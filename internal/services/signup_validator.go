package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/campuslink/apiserver/internal/store"
	"github.com/campuslink/apiserver/types"
)

const rejectionCodeDuplicate = "duplicate"

// ExistenceStore is the slice of the credential store the validator needs.
type ExistenceStore interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByStudentID(ctx context.Context, studentID string) (bool, error)
}

// SignUpValidator pre-checks a signup against existing accounts. It is a
// best-effort check ahead of the store's unique constraints: both fields are
// always checked so a submission duplicating email and student ID surfaces
// both rejections at once.
type SignUpValidator struct {
	store ExistenceStore
}

func NewSignUpValidator(store ExistenceStore) *SignUpValidator {
	return &SignUpValidator{store: store}
}

// Validate returns one rejection per already-taken field. It never mutates
// the store; a non-nil error means a check itself could not run.
func (v *SignUpValidator) Validate(ctx context.Context, req types.SignUpRequest) ([]types.FieldRejection, error) {
	var rejections []types.FieldRejection

	emailTaken, err := v.store.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if emailTaken {
		rejections = append(rejections, duplicateEmailRejection(req.Email))
	}

	studentIDTaken, err := v.store.ExistsByStudentID(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	if studentIDTaken {
		rejections = append(rejections, duplicateStudentIDRejection(req.StudentID))
	}

	return rejections, nil
}

// RejectionForDuplicate maps a duplicate-key error from the store back to the
// field-scoped rejection the validator would have produced, for signups that
// lose the race between pre-check and insert.
func RejectionForDuplicate(err error, req types.SignUpRequest) (types.FieldRejection, bool) {
	switch {
	case errors.Is(err, store.ErrDuplicateEmail):
		return duplicateEmailRejection(req.Email), true
	case errors.Is(err, store.ErrDuplicateStudentID):
		return duplicateStudentIDRejection(req.StudentID), true
	}
	return types.FieldRejection{}, false
}

func duplicateEmailRejection(email string) types.FieldRejection {
	return types.FieldRejection{
		Field:   "email",
		Code:    rejectionCodeDuplicate,
		Message: fmt.Sprintf("email %q is already in use", email),
	}
}

func duplicateStudentIDRejection(studentID string) types.FieldRejection {
	return types.FieldRejection{
		Field:   "student_id",
		Code:    rejectionCodeDuplicate,
		Message: fmt.Sprintf("student id %q is already registered", studentID),
	}
}
