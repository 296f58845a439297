package middleware

import (
	"net/http"
	"strings"
	"time"

	internaljwt "support-desk-backend/internal/jwt"

	"github.com/golang-jwt/jwt"
)

func ValidateJWTMiddleware(role internaljwt.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r)
			if tokenString == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := internaljwt.ParseToken(tokenString, role)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			expires := int64(claims["exp"].(float64))
			if time.Now().Unix() > expires {
				http.Error(w, "Token expired", http.StatusUnauthorized)
				return
			}

			next(w, r)
		}
	}
}

func ValidateMultipleJWTMiddleware(roles ...internaljwt.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r)
			if tokenString == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			var claims jwt.MapClaims
			var err error

			for _, role := range roles {
				claims, err = internaljwt.ParseToken(tokenString, role)
				if err == nil {
					break
				}
			}

			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			expires := int64(claims["exp"].(float64))
			if time.Now().Unix() > expires {
				http.Error(w, "Token expired", http.StatusUnauthorized)
				return
			}

			next(w, r)
		}
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

var ValidateStaffJWT = ValidateJWTMiddleware(internaljwt.RoleStaff)
var ValidateAnyJWT = ValidateMultipleJWTMiddleware(internaljwt.RoleStaff, internaljwt.RoleGuest)
