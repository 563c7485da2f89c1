package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueAndParseToken(t *testing.T) {
	secret := "test-secret-key-for-jwt-signing"

	token, err := IssueToken(secret, "home-assistant", RoleOperator, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if token == "" {
		t.Fatal("IssueToken() returned empty token")
	}

	claims, err := ParseToken(token, secret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "home-assistant" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "home-assistant")
	}
	if claims.Role != RoleOperator {
		t.Errorf("Role = %q, want %q", claims.Role, RoleOperator)
	}
	if claims.ID == "" {
		t.Error("JTI (ID) should not be empty")
	}
}

func TestIssueToken_Errors(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		role   Role
		want   error
	}{
		{"empty secret", "", RoleViewer, ErrEmptySecret},
		{"unknown role", "secret", Role("admin"), ErrInvalidRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := IssueToken(tt.secret, "cli", tt.role, time.Hour)
			if !errors.Is(err, tt.want) {
				t.Errorf("IssueToken() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestIssueToken_DefaultTTL(t *testing.T) {
	token, err := IssueToken("secret", "cli", RoleViewer, 0)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	claims, err := ParseToken(token, "secret")
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}

	diff := claims.ExpiresAt.Time.Sub(time.Now().Add(24 * time.Hour))
	if diff < -time.Minute || diff > time.Minute {
		t.Errorf("default TTL should be ~24h, got expiry diff of %v", diff)
	}
}

func TestParseToken_Rejects(t *testing.T) {
	valid, err := IssueToken("correct-secret", "cli", RoleViewer, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	expired := signClaims(t, "secret", CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "cli",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		Role: RoleViewer,
	})
	noSubject := signClaims(t, "secret", CustomClaims{Role: RoleViewer})
	badRole := signClaims(t, "secret", CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "cli"},
		Role:             "root",
	})

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"empty", "", "secret"},
		{"malformed", "abc.def", "secret"},
		{"garbage", "not-a-valid-jwt", "secret"},
		{"wrong secret", valid, "wrong-secret"},
		{"expired", expired, "secret"},
		{"missing subject", noSubject, "secret"},
		{"unknown role", badRole, "secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(tt.token, tt.secret)
			if !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}

func TestParseToken_RejectsNoneAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "cli"},
		Role:             RoleOperator,
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	if _, err := ParseToken(signed, "secret"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
	}
}

func TestRole(t *testing.T) {
	if !RoleOperator.CanControl() || RoleViewer.CanControl() {
		t.Error("only operators may control devices")
	}
	if Role("").IsValid() {
		t.Error("empty role should be invalid")
	}
}

func signClaims(t *testing.T, secret string, c CustomClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	return s
}
