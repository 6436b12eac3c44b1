// Package jsondb is a credential store kept in memory and persisted to a
// JSON file on Close. Transactions are no-ops: every insert is applied at once.
package jsondb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/patric-chuzhbe/profilesite/internal/models"
	"github.com/patric-chuzhbe/profilesite/internal/user"
)

// JSONDB stores users keyed by email.
type JSONDB struct {
	fileName string
	mu       sync.RWMutex
	Cache    CacheStruct
}

// CacheStruct is the document written to the JSON file.
type CacheStruct struct {
	Users map[string]*user.User
}

// NewCache returns an empty cache.
func NewCache() CacheStruct {
	return CacheStruct{Users: map[string]*user.User{}}
}

func writeToJSONFile(fileName string, cache interface{}) error {
	jsonData, err := json.MarshalIndent(cache, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}

	if err := os.WriteFile(fileName, jsonData, 0o600); err != nil {
		return fmt.Errorf("error writing to file: %w", err)
	}

	return nil
}

func parseJSONFile(fileName string, cache *CacheStruct) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(cache)
}

// New loads fileName, creating an empty database file when it does not exist.
func New(fileName string) (*JSONDB, error) {
	db := &JSONDB{
		fileName: fileName,
		Cache:    NewCache(),
	}

	err := parseJSONFile(fileName, &db.Cache)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("in internal/db/jsondb/jsondb.go/New(): error while `parseJSONFile()` calling: %w", err)
		}
		if err := writeToJSONFile(fileName, db.Cache); err != nil {
			return nil, fmt.Errorf("in internal/db/jsondb/jsondb.go/New(): error while `writeToJSONFile()` calling: %w", err)
		}
	}
	if db.Cache.Users == nil {
		db.Cache.Users = map[string]*user.User{}
	}

	return db, nil
}

// CreateUser adds usr unless its email is taken.
func (db *JSONDB) CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.Cache.Users[usr.Email]; exists {
		return models.ErrDuplicateEmail
	}
	stored := *usr
	db.Cache.Users[usr.Email] = &stored

	return nil
}

// GetUserByEmail returns a copy of the user with the given email.
func (db *JSONDB) GetUserByEmail(ctx context.Context, email string, transaction *sql.Tx) (*user.User, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	stored, found := db.Cache.Users[email]
	if !found {
		return nil, false, nil
	}
	usr := *stored

	return &usr, true, nil
}

// GetNumberOfUsers returns the number of stored users.
func (db *JSONDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return int64(len(db.Cache.Users)), nil
}

func (db *JSONDB) BeginTransaction() (*sql.Tx, error) {
	return nil, nil
}

func (db *JSONDB) CommitTransaction(transaction *sql.Tx) error {
	return nil
}

func (db *JSONDB) RollbackTransaction(transaction *sql.Tx) error {
	return nil
}

func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

// Close writes the users to the JSON file.
func (db *JSONDB) Close() error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return writeToJSONFile(db.fileName, db.Cache)
}
