package jwt

import (
	"strings"
	"testing"
	"time"
)

func configureTestSecrets(t *testing.T) {
	t.Helper()
	Configure([]byte("staff-test-secret"), []byte("guest-test-secret"))
}

func TestStaffTokenRoundTrip(t *testing.T) {
	configureTestSecrets(t)

	token, err := CreateStaffToken(StaffClaims{
		UserID:   "agent-1",
		TenantID: "t1",
		Email:    "agent@example.com",
	}, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasSuffix(token, "1") {
		t.Fatalf("staff token %q must carry the staff role suffix", token)
	}

	claims, err := ParseStaffToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "agent-1" || claims.TenantID != "t1" || claims.Email != "agent@example.com" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestGuestTokenRoundTrip(t *testing.T) {
	configureTestSecrets(t)

	token, err := CreateGuestToken(GuestClaims{
		ConversationID: "conv-1",
		TenantID:       "t1",
		Name:           "Visitor",
	}, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasSuffix(token, "2") {
		t.Fatalf("guest token %q must carry the guest role suffix", token)
	}

	claims, err := ParseGuestToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.ConversationID != "conv-1" || claims.TenantID != "t1" || claims.Name != "Visitor" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestParseRejectsWrongRole(t *testing.T) {
	configureTestSecrets(t)

	staff, err := CreateStaffToken(StaffClaims{UserID: "agent-1", TenantID: "t1"}, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := ParseGuestToken(staff); err == nil {
		t.Fatal("staff token must not parse as guest")
	}
	if _, err := ParseToken(staff, RoleGuest); err == nil {
		t.Fatal("role suffix check must reject cross-role tokens")
	}
}

func TestParseRejectsTamperedSignature(t *testing.T) {
	configureTestSecrets(t)

	token, err := CreateStaffToken(StaffClaims{UserID: "agent-1", TenantID: "t1"}, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	Configure([]byte("rotated-secret"), []byte("guest-test-secret"))
	if _, err := ParseStaffToken(token); err == nil {
		t.Fatal("token signed with the old secret must be rejected")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	configureTestSecrets(t)

	expired := time.Now().Add(-time.Hour).Unix()
	token, err := CreateStaffToken(StaffClaims{UserID: "agent-1", TenantID: "t1"}, expired)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := ParseStaffToken(token); err == nil {
		t.Fatal("expired token must be rejected")
	}
}

func TestParseRejectsEmptyToken(t *testing.T) {
	configureTestSecrets(t)

	if _, err := ParseToken("", RoleStaff); err == nil {
		t.Fatal("empty token must be rejected")
	}
}

func TestParseRequiresIdentityClaims(t *testing.T) {
	configureTestSecrets(t)

	token, err := CreateStaffToken(StaffClaims{Email: "agent@example.com"}, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := ParseStaffToken(token); err == nil {
		t.Fatal("staff token without user and tenant ids must be rejected")
	}
}
