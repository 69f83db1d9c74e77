package auth

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndValidate(t *testing.T) {
	iss := NewIssuer("test-secret")
	token, exp, err := iss.Issue(7, "jdoe", "worker", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(exp) > TokenExpiry || time.Until(exp) < TokenExpiry-time.Minute {
		t.Fatalf("unexpected expiry %s", exp)
	}

	claims, err := iss.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != 7 || claims.Username != "jdoe" || claims.Role != "worker" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" {
		t.Fatalf("expected token id")
	}
}

func TestIssueCapsExpiryAtTempAccess(t *testing.T) {
	iss := NewIssuer("test-secret")
	limit := time.Now().Add(time.Hour)
	_, exp, err := iss.Issue(1, "temp1", "temp", &limit)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !exp.Equal(limit) {
		t.Fatalf("expected expiry %s, got %s", limit, exp)
	}
}

func TestValidateRejectsForeignSecretAndExpiry(t *testing.T) {
	token, _, err := NewIssuer("one").Issue(1, "a", "admin", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewIssuer("two").Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}

	iss := NewIssuer("one")
	iss.now = func() time.Time { return time.Now().Add(TokenExpiry + time.Hour) }
	if _, err := iss.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestIssueBadgeMarksClaims(t *testing.T) {
	iss := NewIssuer("test-secret")
	token, _, err := iss.IssueBadge(3, "scanner", "worker", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := iss.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !claims.Badge || claims.Role != "worker" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	token, _, _ = iss.Issue(3, "scanner", "worker", nil)
	if claims, _ := iss.Validate(token); claims.Badge {
		t.Fatalf("password token marked as badge")
	}
}
