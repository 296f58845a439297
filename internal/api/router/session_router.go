package router

import (
	"net/http"

	"support-desk-backend/internal/api"
	"support-desk-backend/internal/api/endpoints"
	"support-desk-backend/internal/api/middleware"
)

func SessionRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		sessionEndpoints := endpoints.NewSessionEndpoints(s.Services().Sessions)

		mux.HandleFunc(prefix+"/session/status", s.MakeHTTPHandleFunc(sessionEndpoints.SessionStatus, middleware.ValidateStaffJWT))
		mux.HandleFunc(prefix+"/session/start", s.MakeHTTPHandleFunc(sessionEndpoints.Session, middleware.ValidateStaffJWT))
		mux.HandleFunc(prefix+"/session/reset", s.MakeHTTPHandleFunc(sessionEndpoints.Session, middleware.ValidateStaffJWT))
		mux.HandleFunc(prefix+"/session/disconnect", s.MakeHTTPHandleFunc(sessionEndpoints.Session, middleware.ValidateStaffJWT))
		mux.HandleFunc(prefix+"/session/messages/text", s.MakeHTTPHandleFunc(sessionEndpoints.SendText, middleware.ValidateStaffJWT))
		mux.HandleFunc(prefix+"/session/messages/image", s.MakeHTTPHandleFunc(sessionEndpoints.SendImage, middleware.ValidateStaffJWT))
	}
}
