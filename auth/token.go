package auth

import (
	"fmt"
	"strings"
	"time"

	"society-live/contract"
	"society-live/domain"
	"society-live/errors"

	"github.com/golang-jwt/jwt/v5"
)

var _ contract.IAuthenticator = (*Authenticator)(nil)

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	UserID    string      `json:"user_id"`
	SocietyID string      `json:"society_id"`
	Role      domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs HS256 tokens. The platform's login service is the real
// issuer; this one serves tools and tests.
type TokenIssuer struct {
	secret []byte
	issuer string
}

func NewTokenIssuer(secret, issuer string) TokenIssuer {
	return TokenIssuer{secret: []byte(secret), issuer: issuer}
}

// GenerateToken creates a signed JWT for an identity.
func (t TokenIssuer) GenerateToken(identity domain.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID:    identity.UserID,
		SocietyID: identity.SocietyID,
		Role:      identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    t.issuer,
			Subject:   identity.UserID,
		},
	}
	// Create the token using the HS256 algorithm (HMAC with SHA256).
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Authenticator resolves a connection credential into an Identity.
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
		),
	}
}

// Authenticate accepts a raw token or a "Bearer <token>" header value, the
// scheme matched case-insensitively.
// Every failure is reported as errors.ErrAuth and nothing is retried.
func (a *Authenticator) Authenticate(credential string) (domain.Identity, error) {
	tokenStr := strings.TrimSpace(stripBearer(strings.TrimSpace(credential)))
	if tokenStr == "" {
		return domain.Identity{}, fmt.Errorf("%w: credential is missing", errors.ErrAuth)
	}

	claims := &CustomClaims{}
	token, err := a.parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return domain.Identity{}, fmt.Errorf("%w: %v", errors.ErrAuth, err)
	}
	if claims.UserID == "" || claims.SocietyID == "" {
		return domain.Identity{}, fmt.Errorf("%w: identity claims are incomplete", errors.ErrAuth)
	}

	role := claims.Role
	if role == "" {
		role = domain.RoleResident
	}
	return domain.Identity{UserID: claims.UserID, SocietyID: claims.SocietyID, Role: role}, nil
}

func stripBearer(credential string) string {
	const scheme = "bearer "
	if len(credential) >= len(scheme) && strings.EqualFold(credential[:len(scheme)], scheme) {
		return credential[len(scheme):]
	}
	return credential
}
