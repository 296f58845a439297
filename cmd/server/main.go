package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"support-desk-backend/internal/api"
	"support-desk-backend/internal/api/router"
	"support-desk-backend/internal/database"
	"support-desk-backend/internal/directory"
	"support-desk-backend/internal/env"
	internaljwt "support-desk-backend/internal/jwt"
	"support-desk-backend/internal/kb"
	"support-desk-backend/internal/platform"
	_ "support-desk-backend/internal/platform/devsock"
	"support-desk-backend/internal/queue"
	"support-desk-backend/internal/service/aiticket"
	conversationservice "support-desk-backend/internal/service/conversation"
	ticketservice "support-desk-backend/internal/service/ticket"
	"support-desk-backend/internal/session"
	"support-desk-backend/internal/websocket"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	env.Validate()

	internaljwt.Configure(
		[]byte(env.Get(env.StaffSecretKey)),
		[]byte(env.Get(env.GuestSecretKey)),
	)

	db, err := database.NewDatabase()
	if err != nil {
		log.Fatalf("control plane init failed: %v", err)
	}
	dir := directory.NewDynamoDirectory(db)
	registry := database.NewRegistry(dir)
	defer registry.ReleaseAll()

	websocket.InitTransport(env.Get(env.ChatRedisURL), env.Get(env.ChatRedisPass))
	hub := websocket.NewHub()
	go hub.Run()
	handler := websocket.NewHandler(hub)
	handler.SubscribeToRedisChannels()

	conversations := conversationservice.New(registry)
	tickets := ticketservice.New(registry)

	orchestrator := aiticket.New(aiticket.Config{
		Triggers:  aiticket.NewPgxTriggerFactory(registry),
		Scorer:    aiticket.NewHTTPScorer(env.Get(env.FastAPIURL)),
		Tickets:   tickets,
		Directory: dir,
		Knowledge: kb.NewClient(env.Get(env.FastAPIURL)),
	})

	dial, err := platform.DialerFor(env.GetOrDefault(env.PlatformAdapter, "dev"))
	if err != nil {
		log.Fatalf("platform adapter: %v", err)
	}

	store := session.NewStore(env.GetOrDefault(env.SessionsDir, "sessions"))
	if err := store.EnsureRoot(); err != nil {
		log.Fatalf("session store init failed: %v", err)
	}

	restoreWorkers := queue.NewRequestQueueManager(64, 4)
	var sessions *session.Registry
	sessions = session.NewRegistry(session.Config{
		Store:         store,
		Dial:          dial,
		Conversations: conversations,
		Events:        websocket.NewGateway(),
		Workers:       restoreWorkers,
		OnInbound: func(ctx context.Context, tenantID, conversationID, content string) {
			outcome, err := orchestrator.HandleInbound(ctx, tenantID, conversationID, content)
			if err != nil {
				log.Printf("orchestration failed for tenant %s: %v", tenantID, err)
				return
			}
			if outcome.Reply != "" {
				if _, err := sessions.SendAutoReply(ctx, tenantID, conversationID, outcome.Reply); err != nil {
					log.Printf("failed to deliver automated reply for tenant %s: %v", tenantID, err)
				}
			}
		},
	})
	sessions.RestoreAll()

	queueManager := queue.NewRequestQueueManager(10, 10)
	services := api.Services{
		Sessions:      sessions,
		Conversations: conversations,
		Tickets:       tickets,
		Orchestrator:  orchestrator,
		Directory:     dir,
	}

	server := api.NewAPIServer(
		env.GetOrDefault(env.ListenAddr, ":8080"),
		queueManager,
		services,
		handler,
		router.UtilsRoutes("/api/v1"),
		router.SessionRoutes("/api/v1"),
		router.ConversationRoutes("/api/v1"),
		router.TicketRoutes("/api/v1"),
		router.TriggerRoutes("/api/v1"),
		router.WebsocketRoutes("/api/v1"),
	)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		registry.ReleaseAll()
		os.Exit(0)
	}()

	server.Run()
}
