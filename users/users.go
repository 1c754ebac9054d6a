package users

import (
	"time"

	"github.com/jrsteele09/go-storefront/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID           string    `json:"id,omitempty"`            // Unique identifier for the user, the token's sub
	Email        string    `json:"email,omitempty"`         // User's email address
	PasswordHash string    `json:"-"`                       // Hashed version of the user's password - never serialize
	FirstName    string    `json:"nombre,omitempty"`        // First name of the user
	LastName     string    `json:"apellido,omitempty"`      // Last name of the user
	Phone        string    `json:"telefono,omitempty"`      // Contact phone
	Address      string    `json:"direccion,omitempty"`     // Default shipping address
	Active       bool      `json:"estaActivo"`              // Inactive users cannot log in
	CreatedAt    time.Time `json:"fechaCreacion,omitempty"` // Date and time when the user registered
}

// FullName returns the display name of the user
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Credentials is the login form
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (c Credentials) Validate() error {
	return validation.Struct(c)
}

// RegisterData is the registration form
type RegisterData struct {
	FirstName string `json:"nombre" validate:"required,min=2,max=100"`
	LastName  string `json:"apellido" validate:"required,min=2,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6,max=100"`
	Phone     string `json:"telefono" validate:"required,min=8"`
	Address   string `json:"direccion" validate:"required,min=10"`
}

func (d RegisterData) Validate() error {
	return validation.Struct(d)
}

// ValidateField validates one form field by its json name, for inline feedback
func (d RegisterData) ValidateField(name string) error {
	return validation.Field(d, name)
}

// AuthResponse is returned by login and register
type AuthResponse struct {
	AccessToken string `json:"accessToken"`
	User        User   `json:"user"`
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CheckPassword checks a password against the user's hash
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.PasswordHash)
}
