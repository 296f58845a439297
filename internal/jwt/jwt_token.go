package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

var roleSecrets = map[Role][]byte{}

// Configure installs the signing secrets. Called once from main; tests call
// it with their own secrets.
func Configure(staffSecret, guestSecret []byte) {
	roleSecrets = map[Role][]byte{
		RoleStaff: staffSecret,
		RoleGuest: guestSecret,
	}
}

func appendRoleChar(token string, role Role) string {
	switch role {
	case RoleStaff:
		return token + "1"
	case RoleGuest:
		return token + "2"
	}
	return token
}

func expectedRoleChar(role Role) string {
	switch role {
	case RoleStaff:
		return "1"
	case RoleGuest:
		return "2"
	}
	return ""
}

func createToken(claims jwt.MapClaims, role Role, validUntil int64) (string, error) {
	secret, ok := roleSecrets[role]
	if !ok || len(secret) == 0 {
		return "", fmt.Errorf("no secret configured for role")
	}

	if validUntil == 0 {
		validUntil = time.Now().Add(time.Minute * 15).Unix()
	}
	claims["exp"] = validUntil

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", err
	}

	return appendRoleChar(tokenString, role), nil
}

func CreateStaffToken(claims StaffClaims, validUntil int64) (string, error) {
	return createToken(jwt.MapClaims{
		"id":       claims.UserID,
		"tenantId": claims.TenantID,
		"email":    claims.Email,
	}, RoleStaff, validUntil)
}

func CreateGuestToken(claims GuestClaims, validUntil int64) (string, error) {
	return createToken(jwt.MapClaims{
		"conversationId": claims.ConversationID,
		"tenantId":       claims.TenantID,
		"name":           claims.Name,
		"role":           "guest",
	}, RoleGuest, validUntil)
}

// ParseToken validates the role suffix and signature and returns the claims.
func ParseToken(tokenString string, role Role) (jwt.MapClaims, error) {
	if len(tokenString) == 0 {
		return nil, fmt.Errorf("token string is empty")
	}

	if tokenString[len(tokenString)-1:] != expectedRoleChar(role) {
		return nil, fmt.Errorf("invalid role character in token")
	}
	tokenString = tokenString[:len(tokenString)-1]

	secret, ok := roleSecrets[role]
	if !ok || len(secret) == 0 {
		return nil, fmt.Errorf("no secret configured for role")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return secret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("unauthorized: %v", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid - unauthorized")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("claims of unauthorized type")
	}

	return claims, nil
}

func ParseStaffToken(tokenString string) (StaffClaims, error) {
	claims, err := ParseToken(tokenString, RoleStaff)
	if err != nil {
		return StaffClaims{}, err
	}

	out := StaffClaims{}
	out.UserID, _ = claims["id"].(string)
	out.TenantID, _ = claims["tenantId"].(string)
	out.Email, _ = claims["email"].(string)
	if out.UserID == "" || out.TenantID == "" {
		return StaffClaims{}, fmt.Errorf("staff token missing identity claims")
	}
	return out, nil
}

func ParseGuestToken(tokenString string) (GuestClaims, error) {
	claims, err := ParseToken(tokenString, RoleGuest)
	if err != nil {
		return GuestClaims{}, err
	}

	out := GuestClaims{}
	out.ConversationID, _ = claims["conversationId"].(string)
	out.TenantID, _ = claims["tenantId"].(string)
	out.Name, _ = claims["name"].(string)
	if out.ConversationID == "" {
		return GuestClaims{}, fmt.Errorf("guest token missing conversation claim")
	}
	return out, nil
}
