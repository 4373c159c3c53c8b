package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestTokenVerifier_ValidateAccessToken(t *testing.T) {
	verifier := NewTokenVerifier(testSecret)

	tests := []struct {
		name         string
		token        string
		expectedErr  bool
		expectedUser int
		expectedRole int
	}{
		{
			name: "valid access token",
			token: signToken(t, testSecret, jwt.MapClaims{
				"user_id": 7,
				"role":    RoleStudent,
				"type":    "access",
				"exp":     time.Now().Add(time.Hour).Unix(),
			}),
			expectedUser: 7,
			expectedRole: RoleStudent,
		},
		{
			name: "teacher role",
			token: signToken(t, testSecret, jwt.MapClaims{
				"user_id": 3,
				"role":    RoleTeacher,
				"type":    "access",
				"exp":     time.Now().Add(time.Hour).Unix(),
			}),
			expectedUser: 3,
			expectedRole: RoleTeacher,
		},
		{
			name: "expired token",
			token: signToken(t, testSecret, jwt.MapClaims{
				"user_id": 7,
				"role":    RoleStudent,
				"type":    "access",
				"exp":     time.Now().Add(-time.Hour).Unix(),
			}),
			expectedErr: true,
		},
		{
			name: "wrong secret",
			token: signToken(t, "other-secret", jwt.MapClaims{
				"user_id": 7,
				"role":    RoleStudent,
				"type":    "access",
				"exp":     time.Now().Add(time.Hour).Unix(),
			}),
			expectedErr: true,
		},
		{
			name: "refresh token rejected",
			token: signToken(t, testSecret, jwt.MapClaims{
				"user_id": 7,
				"role":    RoleStudent,
				"type":    "refresh",
				"exp":     time.Now().Add(time.Hour).Unix(),
			}),
			expectedErr: true,
		},
		{
			name: "missing user_id",
			token: signToken(t, testSecret, jwt.MapClaims{
				"role": RoleStudent,
				"type": "access",
				"exp":  time.Now().Add(time.Hour).Unix(),
			}),
			expectedErr: true,
		},
		{
			name: "missing role",
			token: signToken(t, testSecret, jwt.MapClaims{
				"user_id": 7,
				"type":    "access",
				"exp":     time.Now().Add(time.Hour).Unix(),
			}),
			expectedErr: true,
		},
		{
			name:        "garbage token",
			token:       "not.a.token",
			expectedErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID, role, err := verifier.ValidateAccessToken(tt.token)

			if tt.expectedErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedUser, userID)
			assert.Equal(t, tt.expectedRole, role)
		})
	}
}
