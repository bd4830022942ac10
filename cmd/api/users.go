package main

import (
	"errors"
	"net/http"
	"strings"

	"solestore/internal/domain/users"
)

type AddressPayload struct {
	Line1      string `json:"line1" validate:"required,max=200"`
	Line2      string `json:"line2" validate:"max=200"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,max=60"`
}

func (a *AddressPayload) toAddress() *users.Address {
	if a == nil {
		return nil
	}
	return &users.Address{
		Line1:      strings.TrimSpace(a.Line1),
		Line2:      strings.TrimSpace(a.Line2),
		City:       strings.TrimSpace(a.City),
		State:      strings.TrimSpace(a.State),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.TrimSpace(a.Country),
	}
}

// UpdateProfilePayload changes only the fields that are present.
type UpdateProfilePayload struct {
	FirstName       *string         `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName        *string         `json:"last_name" validate:"omitempty,max=100"`
	Phone           *string         `json:"phone" validate:"omitempty,max=30"`
	Address         *AddressPayload `json:"address" validate:"omitempty"`
	CurrentPassword string          `json:"current_password" validate:"required_with=NewPassword"`
	NewPassword     string          `json:"new_password" validate:"omitempty,min=8,max=72"`
}

func (app *application) getMeHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	if err := app.jsonResponse(w, http.StatusOK, user.Profile()); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) updateMeHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	var payload UpdateProfilePayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if payload.NewPassword != "" {
		if err := user.Password.Compare(payload.CurrentPassword); err != nil {
			app.badRequestResponse(w, r, errors.New("current password is incorrect"))
			return
		}
	}

	updated, err := app.store.Users.Update(r.Context(), user.ID, func(u *users.User) error {
		if payload.FirstName != nil {
			u.FirstName = strings.TrimSpace(*payload.FirstName)
		}
		if payload.LastName != nil {
			u.LastName = strings.TrimSpace(*payload.LastName)
		}
		if payload.Phone != nil {
			u.Phone = strings.TrimSpace(*payload.Phone)
		}
		if payload.Address != nil {
			u.Address = payload.Address.toAddress()
		}
		if payload.NewPassword != "" {
			if err := u.Password.Set(payload.NewPassword); err != nil {
				return err
			}
			// other sessions must sign in again
			u.RefreshTokenHash = ""
		}
		return nil
	})
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, updated.Profile()); err != nil {
		app.internalServerError(w, r, err)
	}
}
