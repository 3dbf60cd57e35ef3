package database

import (
	"database/sql"
	"fmt"
	"time"

	"streamlify/pkg/logger"

	_ "github.com/lib/pq"
)

const (
	pingAttempts = 5
	pingBackoff  = 2 * time.Second
)

// Connect opens a postgres connection and pings it, retrying a few times in
// case of temporary DNS/network blips.
func Connect(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database connection: %w", err)
	}

	if err := ping(db, pingAttempts, pingBackoff); err != nil {
		db.Close()
		return nil, err
	}
	logger.Sugar.Info("Successfully connected to the database")
	return db, nil
}

func ping(db *sql.DB, attempts int, backoff time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = db.Ping(); err == nil {
			return nil
		}
		logger.Sugar.Infof("Database connection failed, retrying in %s... (%v)", backoff, err)
		time.Sleep(backoff)
	}
	return fmt.Errorf("could not connect to database after %d attempts: %w", attempts, err)
}
