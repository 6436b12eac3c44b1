// Package imagestore persists uploaded profile images either on the local
// disk or in an S3 bucket. Both variants validate the file extension and
// derive a unique storage key from the client-supplied filename.
package imagestore

import (
	"context"
	"io"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/profilesite/internal/models"
)

// Store persists an image and returns the reference saved with the user.
type Store interface {
	Store(ctx context.Context, file io.Reader, originalFilename string) (string, error)
}

var allowedExtensions = []string{"png", "jpg", "jpeg", "gif"}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// IsAllowed reports whether filename has one of the allowed image
// extensions, compared case-insensitively.
func IsAllowed(filename string) bool {
	_, ok := extension(filename)
	return ok
}

func extension(filename string) (string, bool) {
	dot := strings.LastIndex(filename, ".")
	if dot < 0 {
		return "", false
	}
	ext := strings.ToLower(filename[dot+1:])

	return ext, funk.ContainsString(allowedExtensions, ext)
}

// SecureFilename reduces a client-supplied filename to a safe base name:
// path separators become word breaks, whitespace runs become "_", every
// character outside [A-Za-z0-9_.-] is dropped and leading/trailing "." and
// "_" are trimmed. The result may be empty.
func SecureFilename(filename string) string {
	filename = strings.NewReplacer("/", " ", `\`, " ").Replace(filename)
	filename = strings.Join(strings.Fields(filename), "_")
	filename = unsafeFilenameChars.ReplaceAllString(filename, "")

	return strings.Trim(filename, "._")
}

// storageKey returns a unique key for the upload. The sanitized client name
// is kept after the uuid for readability; when sanitizing destroyed the
// extension only the uuid and the extension remain.
func storageKey(originalFilename string) (string, error) {
	ext, ok := extension(originalFilename)
	if !ok {
		return "", models.ErrUnsupportedFileType
	}

	id := uuid.New().String()
	secure := SecureFilename(originalFilename)
	if !IsAllowed(secure) {
		return id + "." + ext, nil
	}

	return id + "-" + secure, nil
}
