package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultAccessTokenExp  = time.Hour * 24 * 3 // 3 days
	DefaultRefreshTokenExp = time.Hour * 24 * 9 // 9 days
)

var ErrInvalidClaims = errors.New("invalid token claims")

type JWTAuthenticator struct {
	secret        string
	refreshSecret string
	aud           string
	iss           string
	accessExp     time.Duration
	refreshExp    time.Duration
}

func NewJWTAuthenticator(secret, refreshSecret, aud, iss string) *JWTAuthenticator {
	return &JWTAuthenticator{
		secret:        secret,
		refreshSecret: refreshSecret,
		aud:           aud,
		iss:           iss,
		accessExp:     DefaultAccessTokenExp,
		refreshExp:    DefaultRefreshTokenExp,
	}
}

// WithExpiry overrides token lifetimes; zero keeps the default.
func (a *JWTAuthenticator) WithExpiry(access, refresh time.Duration) *JWTAuthenticator {
	if access > 0 {
		a.accessExp = access
	}
	if refresh > 0 {
		a.refreshExp = refresh
	}
	return a
}

// GenerateTokens generates both access and refresh tokens
func (a *JWTAuthenticator) GenerateTokens(userID, role string) (string, string, error) {
	accessToken, err := a.GenerateAccessToken(userID, role)
	if err != nil {
		return "", "", err
	}

	refreshToken, err := a.GenerateRefreshToken(userID)
	if err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

func (a *JWTAuthenticator) GenerateAccessToken(userID, role string) (string, error) {
	now := time.Now()
	return a.generateTokenWithClaims(jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  now.Add(a.accessExp).Unix(),
		"iat":  now.Unix(),
		"nbf":  now.Unix(),
		"iss":  a.iss,
		"aud":  a.aud,
	}, a.secret)
}

func (a *JWTAuthenticator) GenerateRefreshToken(userID string) (string, error) {
	now := time.Now()
	return a.generateTokenWithClaims(jwt.MapClaims{
		"sub": userID,
		"exp": now.Add(a.refreshExp).Unix(),
		"iat": now.Unix(),
		"iss": a.iss,
		// distinguishes tokens minted within the same second
		"jti": fmt.Sprintf("%d", now.UnixNano()),
	}, a.refreshSecret)
}

func (a *JWTAuthenticator) generateTokenWithClaims(claims jwt.Claims, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateAccessToken validates the access token
func (a *JWTAuthenticator) ValidateAccessToken(token string) (*jwt.Token, error) {
	return jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(a.secret), nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(a.iss),
		jwt.WithAudience(a.aud),
	)
}

// ValidateRefreshToken validates the refresh token
func (a *JWTAuthenticator) ValidateRefreshToken(token string) (*jwt.Token, error) {
	return jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(a.refreshSecret), nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(a.iss),
	)
}

// Subject returns the user id carried in the sub claim, and the role when
// the token has one.
func Subject(token *jwt.Token) (userID, role string, err error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", ErrInvalidClaims
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", "", ErrInvalidClaims
	}
	role, _ = claims["role"].(string)
	return sub, role, nil
}
