// Package models holds the error kinds and small value types shared by the
// storage, service and router layers.
package models

import "errors"

const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeFile
	StorageTypeMemory
)

// Deployment environments. EnvironmentLocal keeps uploads on disk and uses the
// *_LOCAL database credentials, EnvironmentRemote uploads to S3.
const (
	EnvironmentLocal  = "0"
	EnvironmentRemote = "1"
)

// ErrDuplicateEmail is returned when a user with the same email already exists.
var ErrDuplicateEmail = errors.New("a user with this email already exists")

// ErrUnsupportedFileType is returned for uploads whose extension is not an allowed image type.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// ErrInvalidCredentials covers both an unknown email and a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrStorageFailure wraps errors of the image stores (disk or S3).
var ErrStorageFailure = errors.New("image storage failure")

// ErrPersistenceFailure wraps insert, commit and lookup errors of the credential store.
var ErrPersistenceFailure = errors.New("persistence failure")

// ErrConnectionFailure is returned when the database is unreachable at start.
var ErrConnectionFailure = errors.New("database connection failure")

// SignupRequest carries the fields of the signup form.
type SignupRequest struct {
	Name          string
	Email         string
	Password      string
	ImageFilename string
}
