package postgres

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"

	"github.com/hrygo/reviewsense/internal/profile"
	"github.com/hrygo/reviewsense/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a database specified by its database driver name and a
// driver-specific data source name, usually consisting of at least a
// database name and connection information.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	postgresDB, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	postgresDB.SetMaxOpenConns(25)
	postgresDB.SetMaxIdleConns(5)
	postgresDB.SetConnMaxLifetime(5 * time.Minute)

	driver := DB{db: postgresDB, profile: profile}

	return &driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// placeholder returns the placeholder for the nth argument (1-based).
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}
