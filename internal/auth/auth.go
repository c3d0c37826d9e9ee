package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	coreuser "github.com/frahmantamala/messaging-permissions/internal/core/user"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// User is the authenticated caller placed on the request context.
type User struct {
	ID    string        `json:"id"`
	Email string        `json:"email"`
	Role  coreuser.Role `json:"role"`
}

func (u *User) IsAdmin() bool {
	return u.Role.IsAdmin()
}

// Credentials is what the login flow needs from the user table.
type Credentials struct {
	UserID       string
	Email        string
	Role         coreuser.Role
	PasswordHash string
	IsActive     bool
}

type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Claims represents JWT token claims
type Claims struct {
	UserID    string        `json:"user_id"`
	Email     string        `json:"email"`
	Role      coreuser.Role `json:"role"`
	TokenType string        `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenGenerator creates and validates signed tokens.
type TokenGenerator interface {
	GenerateAccessToken(user *User) (string, error)
	GenerateRefreshToken(user *User) (string, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	ValidateRefreshToken(tokenString string) (*Claims, error)
	AccessTTL() time.Duration
}

type JWTTokenGenerator struct {
	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	now                func() time.Time
}

type ctxKey struct{}

func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

func UserFromContext(ctx context.Context) (*User, bool) {
	if ctx == nil {
		return nil, false
	}
	u, ok := ctx.Value(ctxKey{}).(*User)
	return u, ok && u != nil
}
