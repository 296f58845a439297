package router

import (
	"net/http"

	"support-desk-backend/internal/api"
)

// WebsocketRoutes mounts the realtime endpoints directly on the mux. The
// handshake carries its own token auth and the upgrade must not pass
// through the request queue.
func WebsocketRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		handler := s.Handler()

		mux.HandleFunc(prefix+"/ws/staff", handler.JoinStaff)
		mux.HandleFunc(prefix+"/ws/guest", handler.JoinGuest)
		mux.HandleFunc(prefix+"/ws/rooms", handler.GetRooms)
	}
}
