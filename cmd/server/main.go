package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/ejordan/importrack/internal/config"
	"github.com/ejordan/importrack/internal/database"
	"github.com/ejordan/importrack/internal/handlers"
	"github.com/ejordan/importrack/internal/jobs"
	"github.com/ejordan/importrack/internal/notify"
	"github.com/ejordan/importrack/internal/repository"
	"github.com/ejordan/importrack/internal/scheduler"
	"github.com/ejordan/importrack/internal/services"
	"github.com/ejordan/importrack/pkg/email"
	"github.com/ejordan/importrack/pkg/logger"
	"github.com/ejordan/importrack/pkg/middleware"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

func main() {
	// Load configuration from .env file
	cfg := config.LoadConfig()

	logger.InitLogger()
	logger.Log.Info("Logger initialized")

	// Connect to MongoDB
	db, err := database.ConnectDB(cfg)
	if err != nil {
		log.Fatalf("Database connection error: %v", err)
	}

	// --- Repositories ---
	shipmentRepo := repository.NewShipmentRepository(db)

	// --- Alert dispatch ---
	sender := notify.NewEmailSender(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Sender:   cfg.SMTPSender,
		Password: cfg.SMTPPassword,
	}, cfg.AlertRecipient)
	dispatcher := jobs.NewAlertDispatcher(shipmentRepo, sender, cfg.AlertConcurrency, cfg.AlertSendTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Run(ctx)
	dispatcher.Trigger() // pick up anything that turned urgent while we were down

	if _, err := scheduler.StartAlertCron(dispatcher, cfg.AlertCronSpec); err != nil {
		log.Fatalf("Failed to start alert cron: %v", err)
	}

	// --- Services ---
	shipmentService := services.NewShipmentService(shipmentRepo, dispatcher)

	// --- Handlers ---
	shipmentHandler := handlers.NewShipmentHandler(shipmentService)
	statsHandler := handlers.NewStatsHandler(shipmentService, dispatcher)

	// Initialize Gorilla Mux router
	router := mux.NewRouter()

	router.HandleFunc("/shipments", shipmentHandler.GetShipmentsHandler).Methods("GET")
	router.HandleFunc("/shipments", shipmentHandler.CreateShipmentHandler).Methods("POST")
	router.HandleFunc("/shipments/{id}", shipmentHandler.GetShipmentHandler).Methods("GET")
	router.HandleFunc("/shipments/{id}", shipmentHandler.UpdateShipmentHandler).Methods("PUT")
	router.HandleFunc("/shipments/{id}", shipmentHandler.DeleteShipmentHandler).Methods("DELETE")
	router.HandleFunc("/shipments/{id}/milestones/{milestoneId}", shipmentHandler.ToggleMilestoneHandler).Methods("PATCH")

	router.HandleFunc("/stats", statsHandler.GetStatsHandler).Methods("GET")
	router.HandleFunc("/alerts/scan", statsHandler.TriggerScanHandler).Methods("POST")

	// Apply middleware for logging
	router.Use(middleware.LoggingMiddleware)

	// Start the HTTP server
	port := cfg.Port
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"}, // adjust to frontend origin
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	handler := c.Handler(router)

	fmt.Printf("Server running on port %s\n", port)
	log.Fatal(http.ListenAndServe(":"+port, handler))
}
