package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chat-gateway/internal/contract"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const issuer = "chat-gateway"

// CustomClaims carries the username in the standard subject claim.
type CustomClaims struct {
	jwt.RegisteredClaims
}

// TokenVerifier resolves a bearer token to the user it was issued for.
type TokenVerifier struct {
	key   []byte
	users contract.UserDirectory
	log   *zap.Logger
}

func NewTokenVerifier(key string, users contract.UserDirectory, log *zap.Logger) *TokenVerifier {
	return &TokenVerifier{key: []byte(key), users: users, log: log.Named("auth")}
}

func GenerateToken(key, username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(key))
}

func (v *TokenVerifier) Verify(ctx context.Context, credential string) (contract.Identity, error) {
	if credential == "" {
		return contract.Identity{}, contract.ErrMissingCredential
	}

	token, err := jwt.ParseWithClaims(credential, &CustomClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.key, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return contract.Identity{}, fmt.Errorf("%w: %v", contract.ErrMalformedCredential, err)
		}
		v.log.Debug("token rejected", zap.Error(err))
		return contract.Identity{}, fmt.Errorf("%w: %v", contract.ErrAuthentication, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return contract.Identity{}, contract.ErrMalformedCredential
	}

	user, err := v.users.GetUserByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, contract.ErrNotFound) {
			return contract.Identity{}, fmt.Errorf("%w: %s", contract.ErrUnknownPrincipal, claims.Subject)
		}
		return contract.Identity{}, fmt.Errorf("resolve %s: %w", claims.Subject, err)
	}
	return contract.Identity{UserID: user.ID, Username: user.Username}, nil
}
