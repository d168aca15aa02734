package domain

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/pomotasks/internal/shared/domain"
)

const (
	UsernameMinLength = 3
	UsernameMaxLength = 150
	PasswordMinLength = 8
	// bcrypt sólo usa los primeros 72 bytes.
	PasswordMaxBytes = 72
)

var usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}@.+\-_]+$`)

// User representa una cuenta que posee tareas.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewUser construye un usuario con el hash ya calculado.
func NewUser(username, passwordHash string) *User {
	return &User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
}

// ValidateCredentials comprueba el formato del username y la longitud del password.
func ValidateCredentials(username, password string) error {
	v := sharedDomain.NewValidationError(ErrInvalidUser)

	switch n := utf8.RuneCountInString(username); {
	case strings.TrimSpace(username) == "":
		v.Add("username", "this field is required")
	case n < UsernameMinLength || n > UsernameMaxLength:
		v.Add("username", "must be between 3 and 150 characters")
	case !usernamePattern.MatchString(username):
		v.Add("username", "may contain only letters, digits and @/./+/-/_")
	}

	switch {
	case password == "":
		v.Add("password", "this field is required")
	case utf8.RuneCountInString(password) < PasswordMinLength:
		v.Add("password", "must be at least 8 characters")
	case len(password) > PasswordMaxBytes:
		v.Add("password", "must be at most 72 bytes")
	}

	return v.OrNil()
}
