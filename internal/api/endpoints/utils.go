package endpoints

import (
	"fmt"
	"net/http"
	"strings"

	"support-desk-backend/internal/api"
	internaljwt "support-desk-backend/internal/jwt"
)

type HTTPError = api.HTTPError

type ApiMessageResponse struct {
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	return api.WriteJSON(w, status, v)
}

func MethodHandler(
	w http.ResponseWriter,
	r *http.Request,
	allowed map[string]func(http.ResponseWriter, *http.Request) error,
) error {
	if handler, ok := allowed[r.Method]; ok {
		return handler(w, r)
	}
	return &HTTPError{
		StatusCode: http.StatusMethodNotAllowed,
		Message:    "Method not allowed.",
		ErrorLog:   fmt.Errorf("method not allowed"),
	}
}

// staffFromRequest resolves the staff identity carried in the Authorization
// header. Route middleware has already validated the signature; this recovers
// the tenant scope for the handler.
func staffFromRequest(r *http.Request) (internaljwt.StaffClaims, error) {
	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" {
		return internaljwt.StaffClaims{}, &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("missing authorization header"),
		}
	}

	claims, err := internaljwt.ParseStaffToken(token)
	if err != nil {
		return internaljwt.StaffClaims{}, &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("parse staff token: %w", err),
		}
	}
	return claims, nil
}

// pathSuffix extracts the remainder of the URL after prefix, trimmed of
// slashes. An empty remainder is a routing error surfaced as 404.
func pathSuffix(path, prefix, what string) (string, error) {
	if !strings.HasPrefix(path, prefix) {
		return "", &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    what + " not found",
			ErrorLog:   fmt.Errorf("path mismatch: %s", path),
		}
	}
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return "", &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    what + " not found",
			ErrorLog:   fmt.Errorf("missing identifier in path: %s", path),
		}
	}
	return rest, nil
}
