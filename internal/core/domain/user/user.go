package user

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Document field names used as linking keys and in partial updates.
const (
	FieldID           = "id"
	FieldPrimaryEmail = "primary_email"
	FieldPrimaryPhone = "primary_phone"
	FieldCPF          = "cpf"
	FieldUpdatedAt    = "updated_at"
)

// Namespace is the cache namespace and collection name of users.
const Namespace = "users"

// ErrAlreadyRegistered is returned when a natural key is already taken.
var ErrAlreadyRegistered = errors.New("user already registered")

// LinkingKeys are the natural keys that resolve to the same cached user.
var LinkingKeys = []string{FieldPrimaryEmail, FieldPrimaryPhone, FieldCPF}

// DefaultGroup is granted to every self-registered user.
const DefaultGroup = 1

type User struct {
	ID           uuid.UUID `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	CPF          string    `json:"cpf"`
	PrimaryEmail string    `json:"primary_email"`
	PrimaryPhone string    `json:"primary_phone"`
	Birth        time.Time `json:"birth"`
	Groups       []int     `json:"groups"`
	Credential   string    `json:"credential"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile is the outward view of a user, without the credential.
type Profile struct {
	ID           uuid.UUID `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PrimaryEmail string    `json:"primary_email"`
	PrimaryPhone string    `json:"primary_phone"`
	Groups       []int     `json:"groups"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		PrimaryEmail: u.PrimaryEmail,
		PrimaryPhone: u.PrimaryPhone,
		Groups:       u.Groups,
		CreatedAt:    u.CreatedAt,
	}
}

// CreateUserRequest represents the request to register a new user
type CreateUserRequest struct {
	FirstName    string    `json:"first_name" validate:"required,max=64"`
	LastName     string    `json:"last_name" validate:"required,max=64"`
	CPF          string    `json:"cpf" validate:"required,len=11,numeric"`
	PrimaryEmail string    `json:"primary_email" validate:"required,email"`
	PrimaryPhone string    `json:"primary_phone" validate:"required,e164"`
	Birth        time.Time `json:"birth" validate:"required"`
	Password     string    `json:"password" validate:"required,strongpassword"`
}
