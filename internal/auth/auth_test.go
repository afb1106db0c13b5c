package auth

import (
	"errors"
	"testing"
	"time"
)

func useSecret(t *testing.T) {
	t.Helper()
	t.Setenv("FIELDTRACE_AUTH_SECRET", "test-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)
}

func TestGenerateAndValidate(t *testing.T) {
	useSecret(t)

	token, err := GenerateToken("sup-17", []string{"Supervisor", "supervisor", " "}, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "sup-17" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != RoleSupervisor {
		t.Fatalf("unexpected roles: %v", claims.Roles)
	}
}

func TestGenerateRequiresActor(t *testing.T) {
	useSecret(t)
	if _, err := GenerateToken("  ", nil, time.Minute); err == nil {
		t.Fatal("expected error for empty actor id")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	useSecret(t)
	if _, err := ParseAndValidate("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	useSecret(t)
	token, err := GenerateToken("sup-17", []string{RoleSupervisor}, time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestMissingSecret(t *testing.T) {
	t.Setenv("FIELDTRACE_AUTH_SECRET", "")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	if _, err := GenerateToken("sup-17", nil, time.Minute); err == nil {
		t.Fatal("expected missing-secret error")
	}
}

func TestPrincipalRoles(t *testing.T) {
	p := Principal{ID: "sup-17", Roles: []string{RoleSupervisor}}
	if !p.HasRole("supervisor") || !p.HasRole(" Supervisor ") {
		t.Fatal("expected role match")
	}
	if p.HasRole(RoleAdmin) || p.HasRole("") {
		t.Fatal("unexpected role match")
	}
}
