package router

import (
	"net/http"

	"support-desk-backend/internal/api"
	"support-desk-backend/internal/api/endpoints"
	"support-desk-backend/internal/api/middleware"
)

func TicketRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		ticketEndpoints := endpoints.NewTicketEndpoints(s.Services().Tickets, prefix)

		mux.HandleFunc(prefix+"/tickets", s.MakeHTTPHandleFunc(ticketEndpoints.Tickets, middleware.ValidateStaffJWT))
		mux.HandleFunc(prefix+"/tickets/", s.MakeHTTPHandleFunc(ticketEndpoints.TicketByID, middleware.ValidateStaffJWT))
	}
}

func TriggerRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		triggerEndpoints := endpoints.NewTriggerEndpoints(s.Services().Orchestrator, prefix)

		mux.HandleFunc(prefix+"/triggers", s.MakeHTTPHandleFunc(triggerEndpoints.Triggers, middleware.ValidateStaffJWT))
		mux.HandleFunc(prefix+"/triggers/", s.MakeHTTPHandleFunc(triggerEndpoints.TriggerByID, middleware.ValidateStaffJWT))
	}
}
