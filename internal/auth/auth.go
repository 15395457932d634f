// Package auth verifies staff credentials and the signed session tokens
// issued for them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/safar/go-pos-store/internal/database"
	"github.com/safar/go-pos-store/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// CookieName is the cookie that carries the session token.
const CookieName = "token"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
)

type Claims struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	jwt.RegisteredClaims
}

type Users interface {
	User(ctx context.Context, username string) (*models.User, error)
}

type Authenticator struct {
	users  Users
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthenticator(users Users, secret string, ttl time.Duration) *Authenticator {
	return &Authenticator{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (a *Authenticator) TTL() time.Duration {
	return a.ttl
}

// Login checks the password against the stored bcrypt hash and returns a
// signed token for the user.
func (a *Authenticator) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	user, err := a.users.User(ctx, username)
	if errors.Is(err, database.ErrUserNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := a.Issue(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (a *Authenticator) Issue(user *models.User) (string, error) {
	now := a.now()
	claims := Claims{
		Username: user.Username,
		Name:     user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses an HS256 token and checks its signature and expiry.
func (a *Authenticator) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.Username == "" {
		return nil, fmt.Errorf("%w: token has no username", ErrUnauthorized)
	}
	return claims, nil
}

// Resolve turns a token into the current user row. A valid token for a
// user that no longer exists is rejected.
func (a *Authenticator) Resolve(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	claims, err := a.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := a.users.User(ctx, claims.Username)
	if errors.Is(err, database.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: user %q not found", ErrUnauthorized, claims.Username)
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
