package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"solestore/internal/domain/users"
	"solestore/internal/params"

	"github.com/go-chi/chi/v5"
)

type AdminUpdateUserPayload struct {
	FirstName *string `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=30"`
	Role      *string `json:"role" validate:"omitempty,oneof=customer admin"`
	IsActive  *bool   `json:"is_active"`
}

type UserListResponse = listResponse[users.Profile]

// adminListUsersHandler supports ?q=, ?role=, ?active= and pagination.
func (app *application) adminListUsersHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := users.ListFilter{
		Query: strings.TrimSpace(q.Get("q")),
		Role:  strings.ToLower(strings.TrimSpace(q.Get("role"))),
	}
	if filter.Role != "" && !users.ValidRole(filter.Role) {
		app.badRequestResponse(w, r, errors.New("role must be customer or admin"))
		return
	}
	if s := strings.TrimSpace(q.Get("active")); s != "" {
		active, err := strconv.ParseBool(s)
		if err != nil {
			app.badRequestResponse(w, r, errors.New("active must be true or false"))
			return
		}
		filter.Active = &active
	}

	all, err := app.store.Users.List(r.Context(), filter)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	p := params.ParsePagination(q)
	page := params.Paginate(all, &p)
	p.ComputeMeta(len(all))

	profiles := make([]users.Profile, 0, len(page))
	for _, u := range page {
		profiles = append(profiles, u.Profile())
	}

	if err := app.jsonResponse(w, http.StatusOK, UserListResponse{Items: profiles, Pagination: p}); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) adminGetUserHandler(w http.ResponseWriter, r *http.Request) {
	user, err := app.store.Users.GetByID(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, user.Profile()); err != nil {
		app.internalServerError(w, r, err)
	}
}

// adminUpdateUserHandler changes profile fields, the role or the active flag.
// The last active admin cannot be demoted or deactivated.
func (app *application) adminUpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	var payload AdminUpdateUserPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	updated, err := app.store.Users.Update(r.Context(), chi.URLParam(r, "userID"), func(u *users.User) error {
		if payload.FirstName != nil {
			u.FirstName = strings.TrimSpace(*payload.FirstName)
		}
		if payload.LastName != nil {
			u.LastName = strings.TrimSpace(*payload.LastName)
		}
		if payload.Phone != nil {
			u.Phone = strings.TrimSpace(*payload.Phone)
		}
		if payload.Role != nil {
			u.Role = *payload.Role
		}
		if payload.IsActive != nil {
			u.IsActive = *payload.IsActive
			if !u.IsActive {
				u.RefreshTokenHash = ""
			}
		}
		return nil
	})
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	app.logger.Infow("user updated by admin", "user", updated.ID, "role", updated.Role, "active", updated.IsActive, "by", getUserFromContext(r).ID)

	if err := app.jsonResponse(w, http.StatusOK, updated.Profile()); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) adminDeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")
	if id == getUserFromContext(r).ID {
		app.conflictResponse(w, r, errors.New("admins cannot delete their own account"))
		return
	}

	if err := app.store.Users.Delete(r.Context(), id); err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
