package database

import "database/sql"

// DBTX is the subset of database operations shared by *sql.DB, *sql.Tx and
// the DB wrapper. Repositories are written against it so the currency driver
// can bind them to a per-block transaction while everything else runs against
// the plain connection.
type DBTX interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

var (
	_ DBTX = (*sql.DB)(nil)
	_ DBTX = (*sql.Tx)(nil)
	_ DBTX = (*DB)(nil)
)
