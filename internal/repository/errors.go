package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ConstraintKind names the relational rule a write broke.
type ConstraintKind string

const (
	KindUnique                ConstraintKind = "UNIQUE"
	KindForeignKey            ConstraintKind = "FOREIGN_KEY"
	KindCheck                 ConstraintKind = "CHECK"
	KindNotNull               ConstraintKind = "NOT_NULL"
	KindDuplicateGroupName    ConstraintKind = "DUPLICATE_GROUP_NAME"
	KindStudentAlreadyGrouped ConstraintKind = "STUDENT_ALREADY_GROUPED"
	KindEmptyGroup            ConstraintKind = "EMPTY_GROUP"
	KindMissingIdentity       ConstraintKind = "MISSING_IDENTITY"
	KindMissingRow            ConstraintKind = "MISSING_ROW"
)

// ConstraintError reports input that is invalid against the stored state. The write that
// produced it was rolled back.
type ConstraintError struct {
	Op   string
	Kind ConstraintKind
	Err  error
}

func (e *ConstraintError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: constraint %s violated", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: constraint %s violated: %v", e.Op, e.Kind, e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// StorageFaultError reports that the database could not complete an operation. The write
// that produced it was rolled back.
type StorageFaultError struct {
	Op  string
	Err error
}

func (e *StorageFaultError) Error() string {
	return fmt.Sprintf("%s: storage fault: %v", e.Op, e.Err)
}

func (e *StorageFaultError) Unwrap() error { return e.Err }

// IsConstraint reports whether err is a constraint violation, returning its kind.
func IsConstraint(err error) (ConstraintKind, bool) {
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}

// IsStorageFault reports whether err is a storage fault.
func IsStorageFault(err error) bool {
	var sf *StorageFaultError
	return errors.As(err, &sf)
}

func constraintf(kind ConstraintKind, format string, args ...interface{}) error {
	return &ConstraintError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// classify turns any error raised inside a store operation into one of the two store error
// types, stamping the operation name.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var ce *ConstraintError
	if errors.As(err, &ce) {
		if ce.Op == "" {
			ce.Op = op
		}
		return ce
	}

	var sf *StorageFaultError
	if errors.As(err, &sf) {
		if sf.Op == "" {
			sf.Op = op
		}
		return sf
	}

	if kind, ok := driverConstraint(err); ok {
		return &ConstraintError{Op: op, Kind: kind, Err: err}
	}

	return &StorageFaultError{Op: op, Err: err}
}

// retag replaces the generic kind of a driver constraint failure with a domain kind.
func retag(err error, from, to ConstraintKind) error {
	if kind, ok := driverConstraint(err); ok && kind == from {
		return &ConstraintError{Kind: to, Err: err}
	}
	return err
}

// driverConstraint recognises integrity violations from both supported drivers.
func driverConstraint(err error) (ConstraintKind, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code.Class() != "23" {
			return "", false
		}
		switch pqErr.Code {
		case "23505":
			return KindUnique, true
		case "23503":
			return KindForeignKey, true
		case "23514":
			return KindCheck, true
		case "23502":
			return KindNotNull, true
		default:
			return KindCheck, true
		}
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		if code&0xff != sqlite3.SQLITE_CONSTRAINT {
			return "", false
		}
		switch code {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return KindUnique, true
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return KindForeignKey, true
		case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return KindNotNull, true
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return KindCheck, true
		}
		return constraintFromMessage(liteErr.Error())
	}

	return "", false
}

func constraintFromMessage(msg string) (ConstraintKind, bool) {
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return KindUnique, true
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return KindForeignKey, true
	case strings.Contains(msg, "NOT NULL constraint failed"):
		return KindNotNull, true
	case strings.Contains(msg, "CHECK constraint failed"):
		return KindCheck, true
	default:
		return KindCheck, true
	}
}
