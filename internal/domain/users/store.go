package users

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"time"

	"solestore/internal/recordstore"
)

const Collection = "users"

type ListFilter struct {
	Query  string // matches name or email, case-insensitive
	Role   string
	Active *bool
}

type Counts struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
	Admins   int `json:"admins"`
}

type Store interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, filter ListFilter) ([]*User, error)
	Update(ctx context.Context, id string, fn func(*User) error) (*User, error)
	Delete(ctx context.Context, id string) error
	RecordLogin(ctx context.Context, id, refreshToken string) error
	RotateRefreshToken(ctx context.Context, id, presented, next string) (*User, error)
	ClearRefreshToken(ctx context.Context, id string) error
	Counts(ctx context.Context) (Counts, error)
}

type Repository struct {
	users *recordstore.Collection[*User]
}

func NewRepository(s *recordstore.Store) Store {
	return &Repository{users: recordstore.NewCollection[*User](s, Collection)}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Create stores a new user. The email uniqueness check and the insert happen
// under one collection lock.
func (r *Repository) Create(ctx context.Context, user *User) error {
	user.Email = NormalizeEmail(user.Email)
	if user.Role == "" {
		user.Role = RoleCustomer
	}
	return r.users.Mutate(ctx, func(all []*User) ([]*User, error) {
		for _, u := range all {
			if u.Email == user.Email {
				return nil, ErrDuplicateEmail
			}
		}
		return append(all, user), nil
	})
}

func (r *Repository) GetByID(ctx context.Context, id string) (*User, error) {
	u, ok := r.users.Get(ctx, id)
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	email = NormalizeEmail(email)
	u, ok := r.users.Find(ctx, func(u *User) bool { return u.Email == email })
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

// List returns matching users, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]*User, error) {
	all, err := r.users.List(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(filter.Query))

	out := make([]*User, 0, len(all))
	for _, u := range all {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Active != nil && u.IsActive != *filter.Active {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(u.FullName()), q) &&
			!strings.Contains(u.Email, q) {
			continue
		}
		out = append(out, u)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Update applies fn to the stored user. Demoting or deactivating the last
// active admin fails with ErrLastAdmin.
func (r *Repository) Update(ctx context.Context, id string, fn func(*User) error) (*User, error) {
	var updated *User
	err := r.users.Mutate(ctx, func(all []*User) ([]*User, error) {
		idx := -1
		for i, u := range all {
			if u.ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, ErrNotFound
		}
		wasAdmin := all[idx].IsAdmin() && all[idx].IsActive
		if err := fn(all[idx]); err != nil {
			return nil, err
		}
		all[idx].ID = id
		if wasAdmin && !(all[idx].IsAdmin() && all[idx].IsActive) && activeAdmins(all) == 0 {
			return nil, ErrLastAdmin
		}
		updated = all[idx]
		return all, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.users.Mutate(ctx, func(all []*User) ([]*User, error) {
		for i, u := range all {
			if u.ID != id {
				continue
			}
			rest := append(all[:i:i], all[i+1:]...)
			if u.IsAdmin() && u.IsActive && activeAdmins(rest) == 0 {
				return nil, ErrLastAdmin
			}
			return rest, nil
		}
		return nil, ErrNotFound
	})
}

func activeAdmins(all []*User) int {
	n := 0
	for _, u := range all {
		if u.IsAdmin() && u.IsActive {
			n++
		}
	}
	return n
}

// RecordLogin stores the hash of the latest refresh token and the login time.
func (r *Repository) RecordLogin(ctx context.Context, id, refreshToken string) error {
	_, err := r.users.Update(ctx, id, func(u *User) error {
		now := time.Now().UTC()
		u.RefreshTokenHash = hashToken(refreshToken)
		u.LastLoginAt = &now
		return nil
	})
	if errors.Is(err, recordstore.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func matchesToken(u *User, refreshToken string) bool {
	if u.RefreshTokenHash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(u.RefreshTokenHash), []byte(hashToken(refreshToken))) == 1
}

// RotateRefreshToken swaps presented for next in one locked step, so a
// refresh token is accepted at most once. Inactive users and stale tokens
// get ErrRefreshTokenMismatch.
func (r *Repository) RotateRefreshToken(ctx context.Context, id, presented, next string) (*User, error) {
	u, err := r.users.Update(ctx, id, func(u *User) error {
		if !u.IsActive || !matchesToken(u, presented) {
			return ErrRefreshTokenMismatch
		}
		now := time.Now().UTC()
		u.RefreshTokenHash = hashToken(next)
		u.LastLoginAt = &now
		return nil
	})
	if errors.Is(err, recordstore.ErrNotFound) {
		return nil, ErrRefreshTokenMismatch
	}
	return u, err
}

func (r *Repository) ClearRefreshToken(ctx context.Context, id string) error {
	_, err := r.users.Update(ctx, id, func(u *User) error {
		u.RefreshTokenHash = ""
		return nil
	})
	if errors.Is(err, recordstore.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (r *Repository) Counts(ctx context.Context) (Counts, error) {
	all, err := r.users.List(ctx)
	if err != nil {
		return Counts{}, err
	}
	var c Counts
	for _, u := range all {
		c.Total++
		if u.IsActive {
			c.Active++
		} else {
			c.Inactive++
		}
		if u.IsAdmin() {
			c.Admins++
		}
	}
	return c, nil
}
