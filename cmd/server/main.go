package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yegors/flight-control/internal/api"
	"github.com/yegors/flight-control/internal/config"
	"github.com/yegors/flight-control/internal/flights"
	"github.com/yegors/flight-control/internal/nats"
	"github.com/yegors/flight-control/internal/websocket"
	"github.com/yegors/flight-control/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting flight control dashboard",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
		logger.String("flights_url", cfg.Backend.FlightsURL()),
		logger.String("positions_url", cfg.Backend.PositionsURL()),
	)

	loc, err := cfg.Display.Location()
	if err != nil {
		log.Error("Invalid display timezone", logger.Error(err))
		os.Exit(1)
	}

	// Create backend client
	flightClient := flights.NewClient(
		cfg.Backend.FlightsURL(),
		cfg.Backend.PositionsURL(),
		cfg.Backend.RequestTimeout(),
		log,
	)

	// Create WebSocket server and the board the pages render from
	wsServer := websocket.NewServer(log)
	go wsServer.Run()
	board := websocket.NewBoard(wsServer, log)

	var sink flights.Sink = board
	var natsClient *nats.Client
	if cfg.NATS.Enabled {
		natsClient, err = nats.New(nats.Config{
			URL:           cfg.NATS.URL,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			Stream:        cfg.NATS.Stream,
		}, log)
		if err != nil {
			log.Error("Failed to connect to NATS", logger.Error(err))
			os.Exit(1)
		}
		sink = flights.NewFanoutSink(board, log, natsClient)
	} else {
		log.Info("NATS mirror disabled in configuration")
	}

	popups := flights.NewPopupBuilder(cfg.Display.Locale, loc, cfg.Display.TimeFormat)
	reconciler := flights.NewReconciler(flights.NewRegistry(), sink, popups, log)

	flightService := flights.NewService(
		flightClient,
		reconciler,
		sink,
		popups,
		flights.ServiceConfig{
			FetchInterval:      cfg.Backend.FetchInterval(),
			StaleAfterFailures: cfg.Backend.StaleAfterFailures,
		},
		log,
	)

	// Create and set WebSocket message handler
	wsServer.SetMessageHandler(websocket.NewHandler(board, flightService, 2*cfg.Backend.RequestTimeout(), log))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := flightService.Start(ctx); err != nil {
		log.Error("Failed to start flight service", logger.Error(err))
		os.Exit(1)
	}

	// Create API router
	router := api.NewRouter(flightService, wsServer, cfg, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", logger.String("addr", server.Addr), logger.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	log.Info("Stopping flight service...")
	flightService.Stop()
	log.Info("Flight service stopped.")

	cancel()

	wsServer.Close()

	if natsClient != nil {
		natsClient.Close()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	}

	log.Info("Server fully stopped")
}
