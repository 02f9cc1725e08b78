package repositories

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrDuplicateEntry is returned when an insert violates a unique index
var ErrDuplicateEntry = errors.New("duplicate entry")

// MySQL error numbers
const (
	mysqlDuplicateEntry = 1062 // ER_DUP_ENTRY
	mysqlLockDeadlock   = 1213 // ER_LOCK_DEADLOCK
)

// isDuplicateEntry reports whether err is a MySQL unique index violation
func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
}

// isDeadlock reports whether err is an InnoDB deadlock, after which the transaction can be retried
func isDeadlock(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlLockDeadlock
}
