package api

import (
	"fmt"
	"net/http"

	"support-desk-backend/internal/directory"
	"support-desk-backend/internal/queue"
	"support-desk-backend/internal/service/aiticket"
	"support-desk-backend/internal/service/conversation"
	"support-desk-backend/internal/service/ticket"
	"support-desk-backend/internal/session"
	"support-desk-backend/internal/websocket"

	"github.com/prometheus/client_golang/prometheus"
)

type RouteRegistrar func(mux *http.ServeMux, s *APIServer)

// Services bundles the domain services the route registrars pull from.
type Services struct {
	Sessions      *session.Registry
	Conversations *conversation.Service
	Tickets       *ticket.Service
	Orchestrator  *aiticket.Service
	Directory     directory.Directory
}

type APIServer struct {
	listenAddr          string
	requestQueueManager *queue.RequestQueueManager
	services            Services
	routeRegistrars     []RouteRegistrar
	handler             *websocket.Handler
	metrics             *metrics
}

func NewAPIServer(listenAddr string, rqm *queue.RequestQueueManager, services Services, handler *websocket.Handler, registrars ...RouteRegistrar) *APIServer {

	return &APIServer{
		listenAddr:          listenAddr,
		requestQueueManager: rqm,
		services:            services,
		handler:             handler,
		routeRegistrars:     registrars,
		metrics:             newMetrics(prometheus.DefaultRegisterer, listenAddr, rqm),
	}
}

func (s *APIServer) Run() {
	mux := http.NewServeMux()

	for _, reg := range s.routeRegistrars {
		reg(mux, s)
	}

	mux.Handle("/metrics", s.metrics.metricsHandler())

	fmt.Printf("Server listening on http://localhost%s\n", s.listenAddr)

	if err := http.ListenAndServe(s.listenAddr, s.metrics.instrument(mux)); err != nil {
		fmt.Printf("server stopped: %v\n", err)
	}
}

func (s *APIServer) Services() Services {
	return s.services
}

func (s *APIServer) Handler() *websocket.Handler {
	return s.handler
}
