package users

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

type UserRepo interface {
	Insert(user *User) error
	GetByEmail(email string) (*User, error)
	GetByID(ID string) (*User, error)
}
