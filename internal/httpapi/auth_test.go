package httpapi

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func sign(t *testing.T, method jwt.SigningMethod, key any, c claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, c).SignedString(key)
	if err != nil {
		t.Fatalf("Sign token: %v", err)
	}
	return signed
}

func TestAuthenticatorParse(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	userID := uuid.New()
	valid := jwt.RegisteredClaims{Subject: userID.String(), ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	principal, err := auth.Parse(sign(t, jwt.SigningMethodHS256, []byte(testSecret), claims{Role: RoleVendor, RegisteredClaims: valid}))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if principal.UserID != userID || principal.Role != RoleVendor {
		t.Errorf("Unexpected principal %+v", principal)
	}

	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	noExpiry := valid
	noExpiry.ExpiresAt = nil
	badSubject := valid
	badSubject.Subject = "42"

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", sign(t, jwt.SigningMethodHS256, []byte("other"), claims{Role: RoleBuyer, RegisteredClaims: valid})},
		{"wrong algorithm", sign(t, jwt.SigningMethodHS512, []byte(testSecret), claims{Role: RoleBuyer, RegisteredClaims: valid})},
		{"expired", sign(t, jwt.SigningMethodHS256, []byte(testSecret), claims{Role: RoleBuyer, RegisteredClaims: expired})},
		{"no expiry", sign(t, jwt.SigningMethodHS256, []byte(testSecret), claims{Role: RoleBuyer, RegisteredClaims: noExpiry})},
		{"subject not a uuid", sign(t, jwt.SigningMethodHS256, []byte(testSecret), claims{Role: RoleBuyer, RegisteredClaims: badSubject})},
		{"unknown role", sign(t, jwt.SigningMethodHS256, []byte(testSecret), claims{Role: "root", RegisteredClaims: valid})},
		{"garbage", "abc.def.ghi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := auth.Parse(tt.token); !errors.Is(err, errUnauthenticated) {
				t.Errorf("Expected errUnauthenticated, got %v", err)
			}
		})
	}
}
