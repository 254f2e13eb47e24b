package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messaging-service/internal/broker"
	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/handlers"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/services"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer := telemetry.InitTracer(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			log.Printf("tracer shutdown: %v", err)
		}
	}()

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	if mode := rabbitmq.PublisherMode(publisher); mode != "amqp" {
		log.Printf("audit publisher mode=%s reason=%q", mode, rabbitmq.PublisherNoopReason(publisher))
	}
	audit := telemetry.NewAuditEmitter(publisher, "audit.messaging", cfg.ServiceName, cfg.Environment)

	if amqpPub, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange); err != nil {
		log.Printf("amqp event publisher disabled: %v", err)
	} else {
		observability.SetPublisher(amqpPub)
		defer amqpPub.Close()
	}

	hub := broker.NewHub()
	rt := broker.NewRedisBroker(cfg.RedisURL, hub)
	defer rt.Close()

	convRepo := repositories.NewConversationRepo(database)
	msgRepo := repositories.NewMessageRepo(database)
	notifRepo := repositories.NewNotificationRepo(database)
	userRepo := repositories.NewUserRepo(database)

	notifications := services.NewNotificationService(notifRepo, userRepo, rt, cfg.PersistWhenDisabled)
	fanout := services.NewFanoutWorker(notifications, cfg.FanoutWorkers)
	messages := services.NewMessageService(convRepo, msgRepo, userRepo, rt, fanout)
	conversations := services.NewConversationService(convRepo, notifications)

	notifications.StartMaintenanceLoop(ctx, time.Minute, time.Hour, cfg.NotificationRetention)

	validator := middleware.NewJWTValidator(cfg.JWTSecret)

	conversationHandler := handlers.NewConversationHandler(conversations, audit)
	messageHandler := handlers.NewMessageHandler(messages, audit)
	notificationHandler := handlers.NewNotificationHandler(notifications)
	eventsHandler := handlers.NewEventsHandler(notifications)
	wsHandler := ws.NewHandler(hub, convRepo, validator)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(otelgin.Middleware(cfg.ServiceName))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.AuthMiddleware(validator)

	router.POST("/conversations", auth, conversationHandler.Create)
	router.GET("/conversations", auth, conversationHandler.List)
	router.DELETE("/conversations/:conversation_id", auth, conversationHandler.Delete)
	router.PATCH("/conversations/:conversation_id/settings", auth, conversationHandler.UpdateSettings)
	router.POST("/conversations/:conversation_id/participants", auth, conversationHandler.AddParticipant)
	router.DELETE("/conversations/:conversation_id/participants/:user_id", auth, conversationHandler.RemoveParticipant)

	router.POST("/conversations/:conversation_id/messages", auth, messageHandler.Send)
	router.GET("/conversations/:conversation_id/messages", auth, messageHandler.History)
	router.POST("/conversations/:conversation_id/read", auth, messageHandler.MarkConversationRead)
	router.GET("/conversations/:conversation_id/unread-count", auth, messageHandler.UnreadCount)

	router.PATCH("/messages/:message_id", auth, messageHandler.Edit)
	router.DELETE("/messages/:message_id", auth, messageHandler.Delete)
	router.PUT("/messages/:message_id/reactions/:emoji", auth, messageHandler.AddReaction)
	router.DELETE("/messages/:message_id/reactions/:emoji", auth, messageHandler.RemoveReaction)
	router.POST("/messages/:message_id/read", auth, messageHandler.MarkRead)
	router.GET("/messages/:message_id/receipts", auth, messageHandler.Receipts)

	router.GET("/notifications", auth, notificationHandler.List)
	router.GET("/notifications/unread-count", auth, notificationHandler.UnreadCount)
	router.POST("/notifications/read-all", auth, notificationHandler.MarkAllRead)
	router.POST("/notifications/read/:notification_id", auth, notificationHandler.MarkRead)
	router.PUT("/notification-preferences/:category", auth, notificationHandler.UpdatePreference)

	router.POST("/events/connection-request", auth, eventsHandler.ConnectionRequest)
	router.POST("/events/connection-accepted", auth, eventsHandler.ConnectionAccepted)
	router.POST("/events/mention", auth, eventsHandler.Mention)
	router.POST("/events/project-invitation", auth, eventsHandler.ProjectInvitation)

	router.GET("/ws", wsHandler.Handle)

	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		log.Printf("messaging service listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	fanout.Close()
}
