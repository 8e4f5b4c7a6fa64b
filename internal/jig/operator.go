package jig

import (
	"errors"
	"strings"
)

var (
	// ErrBadCredentials is returned for a wrong administrator login.
	ErrBadCredentials = errors.New("wrong user name or password")
	// ErrGuestName is returned when a guest login has no name.
	ErrGuestName = errors.New("guest name is required")
)

// GuestPrefix starts every guest operator name.
const GuestPrefix = "Guest_"

// Credentials is the single administrator account.
type Credentials struct {
	User     string
	Password string
}

// Operator is the logged-in user attached to logs and activity.
type Operator struct {
	Name  string
	Guest bool
}

// Login checks user and password against the administrator account.
func Login(c Credentials, user, password string) (Operator, error) {
	if user != c.User || password != c.Password {
		return Operator{}, ErrBadCredentials
	}
	return Operator{Name: user}, nil
}

// GuestLogin admits a named guest as Guest_<name>.
func GuestLogin(name string) (Operator, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Operator{}, ErrGuestName
	}
	return Operator{Name: GuestPrefix + name, Guest: true}, nil
}
