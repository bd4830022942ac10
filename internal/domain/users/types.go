package users

import (
	"encoding/json"
	"errors"
	"time"

	"solestore/internal/recordstore"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("a user with that email already exists")
	ErrLastAdmin      = errors.New("cannot remove the last active admin")

	ErrRefreshTokenMismatch = errors.New("refresh token mismatch")
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

func ValidRole(role string) bool {
	return role == RoleCustomer || role == RoleAdmin
}

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type User struct {
	recordstore.Meta
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	Email            string     `json:"email"`
	Phone            string     `json:"phone,omitempty"`
	Password         password   `json:"password_hash"`
	Role             string     `json:"role"`
	IsActive         bool       `json:"is_active"`
	Address          *Address   `json:"address,omitempty"`
	RefreshTokenHash string     `json:"refresh_token_hash,omitempty"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
}

func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// Profile is what the API shows of a user.
type Profile struct {
	ID          string     `json:"id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone,omitempty"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"is_active"`
	Address     *Address   `json:"address,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:          u.ID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		Phone:       u.Phone,
		Role:        u.Role,
		IsActive:    u.IsActive,
		Address:     u.Address,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// password keeps the plain text only in memory; the record holds the hash.
type password struct {
	text *string
	hash []byte
}

func (p *password) Set(text string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(text), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	p.text = &text
	p.hash = hash

	return nil
}

func (p *password) Compare(text string) error {
	return bcrypt.CompareHashAndPassword(p.hash, []byte(text))
}

func (p password) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(p.hash))
}

func (p *password) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	p.hash = []byte(s)
	p.text = nil
	return nil
}
