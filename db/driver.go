// Package db executes rewritten statements against SQLite: the driver with
// MySQL compatibility functions, the Session that owns the connection and
// explicit transactions, busy/locked retry and schema introspection.
package db

import (
	"database/sql"

	"github.com/mattn/go-sqlite3"
)

// DriverName is the database/sql driver with MySQL functions registered
const DriverName = "sqlite3_mylite"

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: RegisterCompatFuncs,
	})
}
