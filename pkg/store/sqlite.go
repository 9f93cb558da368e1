package store

import (
	"database/sql"
	"errors"

	wow "github.com/dogecoinfoundation/wowpay/pkg"

	"github.com/mattn/go-sqlite3"
)

var SETUP_SQL string = `
CREATE TABLE IF NOT EXISTS invoice (
	id TEXT NOT NULL PRIMARY KEY,
	crypto_code TEXT NOT NULL,
	destination TEXT NOT NULL,
	amount TEXT NOT NULL,
	activated BOOLEAN NOT NULL,
	speed_policy INTEGER NOT NULL,
	status TEXT NOT NULL,
	prompt TEXT NOT NULL,
	created DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS invoice_status_i ON invoice (crypto_code, status);

CREATE TABLE IF NOT EXISTS invoice_address (
	crypto_code TEXT NOT NULL,
	address TEXT NOT NULL,
	invoice_id TEXT NOT NULL,
	PRIMARY KEY (crypto_code, address)
);

CREATE TABLE IF NOT EXISTS payment (
	id TEXT NOT NULL,
	invoice_id TEXT NOT NULL,
	crypto_code TEXT NOT NULL,
	status TEXT NOT NULL,
	amount TEXT NOT NULL,
	destination TEXT NOT NULL,
	created DATETIME NOT NULL,
	data TEXT NOT NULL,
	txids TEXT NOT NULL,
	PRIMARY KEY (invoice_id, crypto_code, id)
);
`

// interface guard ensures SQLite implements wow.Store
var _ wow.Store = SQLite{}

type SQLite struct {
	sqlStore
}

// NewSQLite returns a wow.Store implementor that uses sqlite
func NewSQLite(fileName string) (SQLite, error) {
	db, err := sql.Open("sqlite3", fileName)
	if err != nil {
		return SQLite{}, sqliteErr(err, "opening database")
	}
	if fileName == ":memory:" {
		// each connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	// init tables / indexes
	_, err = db.Exec(SETUP_SQL)
	if err != nil {
		db.Close()
		return SQLite{}, sqliteErr(err, "creating database schema")
	}
	return SQLite{sqlStore{db: db, rebind: func(q string) string { return q }, dbErr: sqliteErr}}, nil
}

func sqliteErr(err error, where string) error {
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		if sqErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || sqErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return wow.NewErr(wow.AlreadyExists, "SQLite error: %s: %v", where, err)
		}
		if sqErr.Code == sqlite3.ErrBusy || sqErr.Code == sqlite3.ErrLocked {
			return wow.NewErr(wow.DBConflict, "SQLite error: %s: %v", where, err)
		}
	}
	return wow.NewErr(wow.NotAvailable, "SQLite error: %s: %v", where, err)
}
