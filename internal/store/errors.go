package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when an insert collides with the unique
// constraint on the email column.
var ErrDuplicateEmail = errors.New("email already exists")

// ErrDuplicateStudentID is returned when an insert collides with the unique
// constraint on the student_id column.
var ErrDuplicateStudentID = errors.New("student id already exists")
