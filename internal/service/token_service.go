package service

import (
	"errors"
	"fmt"
	"time"

	"splatchain-ledger/internal/core/domain"
	"splatchain-ledger/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokenLeeway absorbs clock drift between the bridge and the ledger.
const tokenLeeway = 30 * time.Second

// actorTokenClaims is the JWT body. The subject is the actor identity
// "<platform>/<handle>".
type actorTokenClaims struct {
	UserID   string `json:"uid,omitempty"`
	ServerID string `json:"server_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTTokenService implements ports.TokenService with HS256 tokens.
type JWTTokenService struct {
	secret []byte
	expiry time.Duration
	issuer string
	parser *jwt.Parser
}

func NewJWTTokenService(secret string, expiry time.Duration, issuer string) *JWTTokenService {
	return &JWTTokenService{
		secret: []byte(secret),
		expiry: expiry,
		issuer: issuer,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(tokenLeeway),
		),
	}
}

// Generate mints a token for actor and returns it with its expiry.
func (s *JWTTokenService) Generate(actor ports.ActorClaims) (string, time.Time, error) {
	if !domain.ValidIdentity(actor.Actor) {
		return "", time.Time{}, fmt.Errorf("invalid actor identity %q", actor.Actor)
	}

	now := time.Now()
	expiresAt := now.Add(s.expiry)
	claims := actorTokenClaims{
		UserID:   actor.UserID,
		ServerID: actor.ServerID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   actor.Actor,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate verifies signature, issuer and expiry, and rejects subjects that
// are not well-formed actor identities.
func (s *JWTTokenService) Validate(tokenString string) (*ports.ActorClaims, error) {
	var claims actorTokenClaims
	token, err := s.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("token is not valid")
	}
	if !domain.ValidIdentity(claims.Subject) {
		return nil, fmt.Errorf("invalid actor identity in token: %q", claims.Subject)
	}

	return &ports.ActorClaims{
		Actor:    claims.Subject,
		UserID:   claims.UserID,
		ServerID: claims.ServerID,
	}, nil
}
