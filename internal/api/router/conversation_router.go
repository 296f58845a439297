package router

import (
	"net/http"

	"support-desk-backend/internal/api"
	"support-desk-backend/internal/api/endpoints"
	"support-desk-backend/internal/api/middleware"
)

func ConversationRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		convEndpoints := endpoints.NewConversationEndpoints(s.Services().Conversations, prefix)

		mux.HandleFunc(prefix+"/conversations", s.MakeHTTPHandleFunc(convEndpoints.Conversations, middleware.ValidateStaffJWT))
		mux.HandleFunc(prefix+"/conversations/", s.MakeHTTPHandleFunc(convEndpoints.ConversationByID, middleware.ValidateStaffJWT))
	}
}
