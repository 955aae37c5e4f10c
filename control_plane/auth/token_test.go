package auth

import (
	"strings"
	"testing"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("alice", RoleOperator)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.User != "alice" || claims.Role != RoleOperator {
		t.Errorf("Unexpected claims: %+v", claims)
	}
}

func TestTokenTamperedSignature(t *testing.T) {
	token, _ := GenerateToken("alice", RoleAdmin)

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + "." + parts[2] + "x"
	if _, err := ValidateToken(tampered); err == nil {
		t.Error("Expected tampered token to be rejected")
	}
}

func TestTokenTamperedClaims(t *testing.T) {
	token, _ := GenerateToken("alice", RoleOperator)

	parts := strings.Split(token, ".")
	decoded, err := base64URLDecode(parts[1])
	if err != nil {
		t.Fatalf("Failed to decode claims: %v", err)
	}
	elevated := strings.Replace(string(decoded), RoleOperator, RoleAdmin, 1)
	forged := parts[0] + "." + base64URLEncode([]byte(elevated)) + "." + parts[2]

	if _, err := ValidateToken(forged); err == nil {
		t.Error("Expected role-forged token to be rejected")
	}
}

func TestTokenMalformed(t *testing.T) {
	for _, token := range []string{"", "a.b", "not-a-token", "a.b.c.d"} {
		if _, err := ValidateToken(token); err == nil {
			t.Errorf("Expected malformed token %q to be rejected", token)
		}
	}
}
