// Package user defines the user model persisted by the credential stores.
package user

// User is one row of the users table.
type User struct {
	// Name is the display name, not unique.
	Name string `json:"name"`

	// Email is the unique key, stored exactly as the visitor typed it.
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash of the password, never the raw value.
	PasswordHash string `json:"password_hash"`

	// ImageReference is either a path relative to the static root
	// (e.g. "uploads/<key>") or a fully qualified URL of the S3 object.
	ImageReference string `json:"image_reference"`
}
