package core

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed or missing input. During import Sheet and
// Row locate the offending cell; during Save only Field is set.
type ValidationError struct {
	Sheet   string
	Row     int
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	var loc string
	switch {
	case e.Sheet != "" && e.Row > 0:
		loc = fmt.Sprintf("%s row %d: ", e.Sheet, e.Row)
	case e.Sheet != "":
		loc = e.Sheet + ": "
	}
	if e.Field != "" {
		return fmt.Sprintf("validation: %s%s: %s", loc, e.Field, e.Message)
	}
	return fmt.Sprintf("validation: %s%s", loc, e.Message)
}

// NotFoundError reports a reference to a record that does not exist.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// ConflictError reports a concurrent edit: the stored version no longer
// matches the version the caller read.
type ConflictError struct {
	RiskID   int64
	Expected int
	Actual   int
}

func (e *ConflictError) Error() string {
	if e.Actual > 0 {
		return fmt.Sprintf("conflict: risk %d is at version %d, expected %d", e.RiskID, e.Actual, e.Expected)
	}
	return fmt.Sprintf("conflict: risk %d was modified concurrently", e.RiskID)
}

// StorageError wraps a failure of the storage collaborator.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// WrapStorage wraps err as a StorageError unless it already carries one of the
// typed errors above. A nil err stays nil.
func WrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		ve *ValidationError
		nf *NotFoundError
		ce *ConflictError
		se *StorageError
	)
	if errors.As(err, &ve) || errors.As(err, &nf) || errors.As(err, &ce) || errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
