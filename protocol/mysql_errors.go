package protocol

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// MySQL error numbers reported for mapped SQLite failures
const (
	ErrCodeUnknown         uint16 = 1105
	ErrCodeDupEntry        uint16 = 1062
	ErrCodeBadNull         uint16 = 1048
	ErrCodeNoReferencedRow uint16 = 1452
	ErrCodeCheckConstraint uint16 = 3819
	ErrCodeLockTimeout     uint16 = 1205
	ErrCodeDeadlock        uint16 = 1213
	ErrCodeTooBigRowsize   uint16 = 1118
	ErrCodeNoSuchTable     uint16 = 1146
	ErrCodeTableExists     uint16 = 1050
	ErrCodeBadField        uint16 = 1054
	ErrCodeParseError      uint16 = 1064
	ErrCodeNotSupported    uint16 = 1235
	ErrCodePacketTooLarge  uint16 = 1153
)

// SQLSTATE values paired with the error numbers above
const (
	SQLStateGeneral     = "HY000"
	SQLStateIntegrity   = "23000"
	SQLStateDeadlock    = "40001"
	SQLStateNoSuchTable = "42S02"
	SQLStateTableExists = "42S01"
	SQLStateNoSuchCol   = "42S22"
	SQLStateSyntax      = "42000"
	SQLStateFeature     = "0A000"
	SQLStatePacket      = "08S01"
)

// NewMySQLError creates a MySQL error in the shape the MySQL driver reports it
func NewMySQLError(code uint16, sqlState, message string) *mysql.MySQLError {
	e := &mysql.MySQLError{
		Number:  code,
		Message: message,
	}
	copy(e.SQLState[:], sqlState)
	return e
}

// SQLState returns the SQLSTATE of a MySQL error as a string
func SQLState(e *mysql.MySQLError) string {
	return string(e.SQLState[:])
}

// ErrLockWaitTimeout returns error 1205 - lock wait timeout exceeded
func ErrLockWaitTimeout() *mysql.MySQLError {
	return NewMySQLError(ErrCodeLockTimeout, SQLStateGeneral, "Lock wait timeout exceeded; try restarting transaction")
}

// ErrDeadlock returns error 1213 - deadlock detected
func ErrDeadlock() *mysql.MySQLError {
	return NewMySQLError(ErrCodeDeadlock, SQLStateDeadlock, "Deadlock found when trying to get lock; try restarting transaction")
}

// IsRetryableError checks if an error is a retryable transaction error
func IsRetryableError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		return false
	}

	switch mysqlErr.Number {
	case ErrCodeLockTimeout, ErrCodeDeadlock:
		return true
	default:
		return false
	}
}
