// Package memorystorage is the credential store used when neither a database
// nor a JSON file is configured. Users are lost on restart.
package memorystorage

import (
	"github.com/patric-chuzhbe/profilesite/internal/db/jsondb"
)

type MemoryStorage struct {
	*jsondb.JSONDB
}

func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		JSONDB: &jsondb.JSONDB{
			Cache: jsondb.NewCache(),
		},
	}, nil
}

func (theStorage *MemoryStorage) Close() error {
	return nil
}
