// Package postgresdb provides the PostgreSQL credential store. The schema is
// embedded and applied with goose when the store is opened.
package postgresdb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/patric-chuzhbe/profilesite/internal/models"
	"github.com/patric-chuzhbe/profilesite/internal/user"
)

//go:embed migrations/*.sql
var migrations embed.FS

const uniqueViolationCode = "23505"

// PostgresDB is a PostgreSQL-backed users table.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type initOptions struct {
	DBPreReset bool
}

// InitOption defines a functional option for configuring database initialization.
type InitOption func(*initOptions)

// WithDBPreReset drops every table of the public schema before migrating.
// Only meant for tests.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

// New connects to the database, verifies it is reachable within
// connectionTimeout and applies the embedded migrations. Connection and
// migration errors are wrapped with models.ErrConnectionFailure.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{
		DBPreReset: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, fmt.Errorf("%w: in internal/db/postgresdb/postgresdb.go/New(): error while `sql.Open()` calling: %w", models.ErrConnectionFailure, err)
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if err := result.Ping(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("%w: in internal/db/postgresdb/postgresdb.go/New(): error while `result.Ping()` calling: %w", models.ErrConnectionFailure, err)
	}

	if options.DBPreReset {
		if err := result.resetDB(ctx); err != nil {
			database.Close()
			return nil, err
		}
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		database.Close()
		return nil, fmt.Errorf("in internal/db/postgresdb/postgresdb.go/New(): error while `goose.SetDialect()` calling: %w", err)
	}

	if err := goose.UpContext(ctx, database, "migrations"); err != nil {
		database.Close()
		return nil, fmt.Errorf("%w: in internal/db/postgresdb/postgresdb.go/New(): error while `goose.UpContext()` calling: %w", models.ErrConnectionFailure, err)
	}

	return result, nil
}

func (db *PostgresDB) queryerFor(transaction *sql.Tx) queryer {
	if transaction == nil {
		return db.database
	}

	return transaction
}

func (db *PostgresDB) executorFor(transaction *sql.Tx) executor {
	if transaction == nil {
		return db.database
	}

	return transaction
}

// CreateUser inserts usr. A clash on the email constraint is reported as
// models.ErrDuplicateEmail.
func (db *PostgresDB) CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) error {
	_, err := db.executorFor(transaction).ExecContext(
		ctx,
		`
			INSERT INTO users (name, email, password_hash, image_reference)
				VALUES ($1, $2, $3, $4)
		`,
		usr.Name,
		usr.Email,
		usr.PasswordHash,
		usr.ImageReference,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return models.ErrDuplicateEmail
		}
		return fmt.Errorf("in internal/db/postgresdb/postgresdb.go/CreateUser(): error while `ExecContext()` calling: %w", err)
	}

	return nil
}

// GetUserByEmail looks a user up by the exact email. The boolean reports
// whether a row was found.
func (db *PostgresDB) GetUserByEmail(ctx context.Context, email string, transaction *sql.Tx) (*user.User, bool, error) {
	row := db.queryerFor(transaction).QueryRowContext(
		ctx,
		`SELECT name, email, password_hash, image_reference FROM users WHERE email = $1`,
		email,
	)

	usr := &user.User{}
	err := row.Scan(&usr.Name, &usr.Email, &usr.PasswordHash, &usr.ImageReference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("in internal/db/postgresdb/postgresdb.go/GetUserByEmail(): error while `row.Scan()` calling: %w", err)
	}

	return usr, true, nil
}

// GetNumberOfUsers returns the number of rows in the users table.
func (db *PostgresDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	var count int64
	err := db.database.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("in internal/db/postgresdb/postgresdb.go/GetNumberOfUsers(): error while `Scan()` calling: %w", err)
	}

	return count, nil
}

// BeginTransaction starts a new SQL transaction and returns it.
// The caller is responsible for committing or rolling it back.
func (db *PostgresDB) BeginTransaction() (*sql.Tx, error) {
	return db.database.Begin()
}

// CommitTransaction commits the given SQL transaction.
func (db *PostgresDB) CommitTransaction(transaction *sql.Tx) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic occurred while committing transaction: %v", r)
		}
	}()

	return transaction.Commit()
}

// RollbackTransaction rolls back the given SQL transaction.
func (db *PostgresDB) RollbackTransaction(transaction *sql.Tx) error {
	return transaction.Rollback()
}

// Ping verifies connectivity with the PostgreSQL database within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

// Close closes the database connection and releases any associated resources.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			DO $$
			DECLARE
				r RECORD;
			BEGIN
				FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
					EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
				END LOOP;
			END $$;
		`,
	)
	if err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/resetDB(): error while `db.database.ExecContext()` calling: %w",
			err,
		)
	}
	return nil
}
