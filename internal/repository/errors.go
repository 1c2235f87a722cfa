// Package repository contains the MySQL data access layer.  Methods return
// the sentinel errors below so handlers can pick a result outcome without
// inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrStallNotFound   = errors.New("stall not found")
	ErrRentalNotFound  = errors.New("rental not found")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrExpenseNotFound = errors.New("expense not found")
	ErrUserNotFound    = errors.New("user not found")

	// ErrEmailExists is returned when registering an email that is taken.
	ErrEmailExists = errors.New("email already exists")

	// ErrDuplicate wraps unique-key violations.
	ErrDuplicate = errors.New("duplicate entry")

	// ErrConflict is returned when an operation cannot proceed because of
	// dependent records or the current state, e.g. renting an occupied
	// stall or deleting a stall that still has rentals.
	ErrConflict = errors.New("conflict")

	// ErrInvalidToken is returned for refresh tokens that are unknown,
	// revoked or expired.
	ErrInvalidToken = errors.New("invalid refresh token")
)

const (
	mysqlDupEntry         = 1062
	mysqlRowIsReferenced  = 1451
	mysqlNoReferencedRow  = 1452
	mysqlRowIsReferenced2 = 1217
)

// translate maps MySQL constraint errors onto repository sentinels and
// returns other errors untouched.
func translate(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return err
	}
	switch me.Number {
	case mysqlDupEntry:
		return errors.Join(ErrDuplicate, err)
	case mysqlRowIsReferenced, mysqlRowIsReferenced2, mysqlNoReferencedRow:
		return errors.Join(ErrConflict, err)
	}
	return err
}
