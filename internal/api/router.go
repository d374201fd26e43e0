package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yegors/flight-control/internal/config"
	"github.com/yegors/flight-control/pkg/logger"
)

// WebSocketServer accepts dashboard page connections
type WebSocketServer interface {
	ClientCounter
	HandleConnection(w http.ResponseWriter, r *http.Request)
}

// Router wires the HTTP surface
type Router struct {
	handler  *Handler
	wsServer WebSocketServer
	config   *config.Config
	logger   *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(flightService FlightService, wsServer WebSocketServer, cfg *config.Config, log *logger.Logger) *Router {
	return &Router{
		handler:  NewHandler(flightService, wsServer, cfg, log),
		wsServer: wsServer,
		config:   cfg,
		logger:   log.Named("router"),
	}
}

// Routes returns the root handler
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(rt.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Get("/health", rt.handler.GetHealth)
		r.Get("/config", rt.handler.GetConfig)
		r.Get("/views", rt.handler.GetViews)
		r.Get("/views/{list}.csv", rt.handler.GetViewCSV)
		r.Post("/refresh", rt.handler.PostRefresh)
	})

	if rt.wsServer != nil {
		r.Get("/ws", rt.wsServer.HandleConnection)
	}

	if dir := rt.config.Server.StaticFilesDir; dir != "" {
		r.Handle("/*", NewStaticFileHandler(dir, rt.logger))
	}

	return r
}

// requestLogger logs every request at debug level
func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		rt.logger.Debug("HTTP request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Int("bytes", ww.BytesWritten()),
			logger.Duration("duration", time.Since(start)),
			logger.String("request_id", middleware.GetReqID(r.Context())))
	})
}
