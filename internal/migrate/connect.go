package migrate

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to a postgres DSN or, for "sqlite3", a file path.
func Open(driver, dsn string) (*sqlx.DB, error) {
	if driver == "sqlite" {
		driver = "sqlite3"
	}
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	return db, nil
}
