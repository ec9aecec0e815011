package journal

import (
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func sqlxOpen(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// temp tables live on a single session
	db.SetMaxOpenConns(1)
	return db, nil
}
