package queries

import (
	"context"
	"database/sql"
	"fmt"
)

const usersTable = "users"

func lookups(ctx context.Context, db *sql.DB, tx *sql.Tx, email, table string) {
	db.QueryRowContext(ctx, `SELECT name FROM users WHERE email = $1`, email)
	db.QueryRowContext(ctx, "SELECT name FROM "+usersTable+" WHERE email = $1", email)

	db.QueryRowContext(ctx, fmt.Sprintf("SELECT name FROM users WHERE email = '%s'", email)) // want "SQL query built with fmt.Sprintf, use placeholders"
	tx.ExecContext(ctx, "DELETE FROM "+table)                                                  // want "SQL query built by string concatenation, use placeholders"
	db.Query("SELECT name FROM users WHERE email = '" + email + "'")                          // want "SQL query built by string concatenation, use placeholders"
}

type notADatabase struct{}

func (notADatabase) Query(query string) {}

func unrelated(email string) {
	notADatabase{}.Query(fmt.Sprintf("%s", email))
}
