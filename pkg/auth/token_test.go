package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtwroastery/roastery-backend/pkg/config"
	"github.com/rtwroastery/roastery-backend/pkg/enums"
)

var testCfg = config.JWTConfig{Secret: "secret", Issuer: "rtw-roastery", ExpirationMinutes: 30}

func TestMintAndParseAccessToken(t *testing.T) {
	now := time.Now().UTC()
	userID := uuid.New()

	token, err := MintAccessToken(testCfg, now, AccessTokenPayload{
		UserID: userID,
		Email:  " Barista@Example.com ",
		Role:   enums.UserRoleAdmin,
		JTI:    "session-1",
	})
	require.NoError(t, err)

	claims, err := ParseAccessToken(testCfg, token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "barista@example.com", claims.Email)
	assert.Equal(t, enums.UserRoleAdmin, claims.Role)
	assert.Equal(t, "session-1", claims.ID)
	assert.Equal(t, testCfg.Issuer, claims.Issuer)
	assert.WithinDuration(t, now.Add(30*time.Minute), claims.ExpiresAt.Time, time.Second)
}

func TestMintAccessTokenGeneratesSessionID(t *testing.T) {
	token, err := MintAccessToken(testCfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleCustomer})
	require.NoError(t, err)
	claims, err := ParseAccessToken(testCfg, token)
	require.NoError(t, err)
	_, err = uuid.Parse(claims.ID)
	assert.NoError(t, err)
}

func TestParseAccessTokenRejections(t *testing.T) {
	valid, err := MintAccessToken(testCfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleCustomer})
	require.NoError(t, err)
	expired, err := MintAccessToken(testCfg, time.Now().Add(-time.Hour), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleCustomer})
	require.NoError(t, err)
	otherIssuer := testCfg
	otherIssuer.Issuer = "someone-else"
	foreign, err := MintAccessToken(otherIssuer, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleCustomer})
	require.NoError(t, err)
	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": uuid.NewString()}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseAccessToken(testCfg, expired)
	assert.ErrorIs(t, err, ErrTokenExpired)

	for name, raw := range map[string]string{
		"tampered":  valid + "x",
		"issuer":    foreign,
		"alg none":  noneAlg,
		"not a jwt": "abc",
		"empty":     "",
	} {
		_, err := ParseAccessToken(testCfg, raw)
		assert.ErrorIs(t, err, ErrTokenInvalid, name)
	}
}

func TestMintAccessTokenValidatesInput(t *testing.T) {
	_, err := MintAccessToken(testCfg, time.Now(), AccessTokenPayload{UserID: uuid.New()})
	assert.Error(t, err, "role required")

	_, err = MintAccessToken(testCfg, time.Now(), AccessTokenPayload{Role: enums.UserRoleCustomer})
	assert.Error(t, err, "user required")

	noTTL := testCfg
	noTTL.ExpirationMinutes = 0
	_, err = MintAccessToken(noTTL, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleCustomer})
	assert.Error(t, err)

	_, err = ParseAccessToken(config.JWTConfig{Issuer: "x"}, "token")
	assert.Error(t, err)
}
