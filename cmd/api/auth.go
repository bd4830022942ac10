package main

import (
	"errors"
	"net/http"
	"strings"

	"solestore/internal/auth"
	"solestore/internal/domain/users"
	"solestore/internal/mailer"
)

type RegisterUserPayload struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Phone     string `json:"phone" validate:"omitempty,max=30"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
}

type CreateUserTokenPayload struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=3,max=72"`
}

type RefreshPayload struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type TokenResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	UserID       string        `json:"user_id"`
	Role         string        `json:"role"`
	User         users.Profile `json:"user"`
}

// registerUserHandler creates a customer account and signs it in.
func (app *application) registerUserHandler(w http.ResponseWriter, r *http.Request) {
	var payload RegisterUserPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := &users.User{
		FirstName: strings.TrimSpace(payload.FirstName),
		LastName:  strings.TrimSpace(payload.LastName),
		Email:     payload.Email,
		Phone:     strings.TrimSpace(payload.Phone),
		Role:      users.RoleCustomer,
		IsActive:  true,
	}

	// hash the user password
	if err := user.Password.Set(payload.Password); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	ctx := r.Context()

	if err := app.store.Users.Create(ctx, user); err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	resp, err := app.issueTokens(r, user)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.sendMail(mailer.WelcomeTemplate, user.FirstName, user.Email, struct {
		Username string
		ShopURL  string
	}{
		Username: user.FirstName,
		ShopURL:  app.config.frontendURL,
	})

	if err := app.jsonResponse(w, http.StatusCreated, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

// createTokenHandler exchanges credentials for an access and refresh token.
func (app *application) createTokenHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateUserTokenPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user, err := app.store.Users.GetByEmail(r.Context(), payload.Email)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrNotFound):
			app.unauthorizedErrorResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := user.Password.Compare(payload.Password); err != nil {
		app.unauthorizedErrorResponse(w, r, err)
		return
	}

	if !user.IsActive {
		app.unauthorizedErrorResponse(w, r, errors.New("account is deactivated"))
		return
	}

	resp, err := app.issueTokens(r, user)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

// refreshTokenHandler rotates the refresh token. Each refresh token works once.
func (app *application) refreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	var payload RefreshPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	token, err := app.authenticator.ValidateRefreshToken(payload.RefreshToken)
	if err != nil || !token.Valid {
		app.unauthorizedErrorResponse(w, r, errors.New("invalid refresh token"))
		return
	}

	userID, _, err := auth.Subject(token)
	if err != nil {
		app.unauthorizedErrorResponse(w, r, err)
		return
	}

	refreshToken, err := app.authenticator.GenerateRefreshToken(userID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	user, err := app.store.Users.RotateRefreshToken(r.Context(), userID, payload.RefreshToken, refreshToken)
	switch {
	case errors.Is(err, users.ErrRefreshTokenMismatch):
		app.unauthorizedErrorResponse(w, r, err)
		return
	case err != nil:
		app.internalServerError(w, r, err)
		return
	}

	accessToken, err := app.authenticator.GenerateAccessToken(user.ID, user.Role)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	resp := &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		UserID:       user.ID,
		Role:         user.Role,
		User:         user.Profile(),
	}
	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

// logoutHandler forgets the stored refresh token.
func (app *application) logoutHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	if err := app.store.Users.ClearRefreshToken(r.Context(), user.ID); err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (app *application) issueTokens(r *http.Request, user *users.User) (*TokenResponse, error) {
	accessToken, refreshToken, err := app.authenticator.GenerateTokens(user.ID, user.Role)
	if err != nil {
		return nil, err
	}

	// Save refresh token in the store
	if err := app.store.Users.RecordLogin(r.Context(), user.ID, refreshToken); err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		UserID:       user.ID,
		Role:         user.Role,
		User:         user.Profile(),
	}, nil
}
