// backend/database/store.go
package database

import "database/sql"

// Store bundles the mirror's table access behind one receiver so services can
// take it (or a fake) through their interfaces.
type Store struct {
	db *sql.DB
}

// NewStore returns a Store over the given connection pool; pass database.DB
// after InitDB.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}
