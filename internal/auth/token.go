package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 24 * time.Hour

// JWTProvider issues and resolves HS256 bearer tokens carrying the account
// email as the subject claim.
type JWTProvider struct {
	secret   []byte
	tokenTTL time.Duration
}

func NewJWTProvider(secret string, tokenTTL time.Duration) *JWTProvider {
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	return &JWTProvider{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
	}
}

// Issue signs a token for the given email.
func (p *JWTProvider) Issue(email string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(p.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}

// ExtractToken pulls the bearer token out of a raw Authorization header value.
func (p *JWTProvider) ExtractToken(headerValue string) (string, error) {
	headerValue = strings.TrimSpace(headerValue)
	if headerValue == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(headerValue, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}

// ResolveEmail validates the token and returns its email claim.
func (p *JWTProvider) ResolveEmail(tokenString string) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return p.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	email := strings.TrimSpace(claims.Subject)
	if email == "" {
		return "", errors.New("missing subject")
	}
	return email, nil
}
