package service

import (
	"testing"
	"time"

	"splatchain-ledger/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-jwt-secret-key-for-unit-tests"

func signRaw(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestJWTTokenService_GenerateAndValidate(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, 24*time.Hour, "test-issuer")
	actor := ports.ActorClaims{Actor: "discord/u1", UserID: "1234", ServerID: "9876"}

	tokenStr, expiresAt, err := svc.Generate(actor)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), expiresAt, time.Minute)

	claims, err := svc.Validate(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, actor, *claims)
}

func TestJWTTokenService_OptionalClaims(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "test-issuer")

	tokenStr, _, err := svc.Generate(ports.ActorClaims{Actor: "matrix/bob"})
	require.NoError(t, err)

	claims, err := svc.Validate(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, ports.ActorClaims{Actor: "matrix/bob"}, *claims)
}

func TestJWTTokenService_RejectsMalformedActor(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "test-issuer")

	_, _, err := svc.Generate(ports.ActorClaims{Actor: "no-platform"})
	assert.Error(t, err)

	foreign := signRaw(t, jwt.SigningMethodHS256, []byte(testJWTSecret), jwt.MapClaims{
		"sub": "no-platform",
		"iss": "test-issuer",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	_, err = svc.Validate(foreign)
	assert.ErrorContains(t, err, "invalid actor identity")
}

func TestJWTTokenService_Rejects(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "issuer-a")
	otherIssuer, _, err := NewJWTTokenService(testJWTSecret, time.Hour, "issuer-b").Generate(ports.ActorClaims{Actor: "discord/u1"})
	require.NoError(t, err)
	otherSecret, _, err := NewJWTTokenService("secret-2", time.Hour, "issuer-a").Generate(ports.ActorClaims{Actor: "discord/u1"})
	require.NoError(t, err)
	expired, _, err := NewJWTTokenService(testJWTSecret, -time.Hour, "issuer-a").Generate(ports.ActorClaims{Actor: "discord/u1"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"wrong issuer", otherIssuer},
		{"wrong secret", otherSecret},
		{"expired", expired},
		{"no expiry", signRaw(t, jwt.SigningMethodHS256, []byte(testJWTSecret), jwt.MapClaims{"sub": "discord/u1", "iss": "issuer-a"})},
		{"hs512", signRaw(t, jwt.SigningMethodHS512, []byte(testJWTSecret), jwt.MapClaims{"sub": "discord/u1", "iss": "issuer-a", "exp": time.Now().Add(time.Hour).Unix()})},
		{"unsigned", signRaw(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.MapClaims{"sub": "discord/u1", "iss": "issuer-a", "exp": time.Now().Add(time.Hour).Unix()})},
		{"garbage", "not.a.valid.jwt"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Validate(tt.token)
			assert.Error(t, err)
		})
	}
}

func TestJWTTokenService_ToleratesClockDrift(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "issuer")
	justExpired := signRaw(t, jwt.SigningMethodHS256, []byte(testJWTSecret), jwt.MapClaims{
		"sub": "discord/u1",
		"iss": "issuer",
		"exp": time.Now().Add(-5 * time.Second).Unix(),
	})

	claims, err := svc.Validate(justExpired)
	require.NoError(t, err)
	assert.Equal(t, "discord/u1", claims.Actor)
}
