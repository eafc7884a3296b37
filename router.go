package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/frontdesk/frontdesk/pkg/config"
	"github.com/frontdesk/frontdesk/pkg/db"
	"github.com/frontdesk/frontdesk/pkg/handler"
	"github.com/frontdesk/frontdesk/pkg/hub"
	"github.com/frontdesk/frontdesk/pkg/service"
	"github.com/frontdesk/frontdesk/pkg/tools"
	"github.com/frontdesk/frontdesk/pkg/utils"
	"github.com/gin-gonic/gin"
)

type Server struct {
	ginEngine *gin.Engine
	cfg       *config.AppConfig
	history   *service.HistoryService
	logger    *slog.Logger
	port      int
}

func NewServer(cfg *config.AppConfig) (*Server, error) {
	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery())

	server := &Server{
		ginEngine: ginEngine,
		cfg:       cfg,
		logger:    utils.GetLogger(),
		port:      0,
	}

	if err := server.SetupRoutes(); err != nil {
		return nil, err
	}

	return server, nil
}

func (s *Server) SetupRoutes() error {
	dataFile, err := config.DataFile()
	if err != nil {
		return fmt.Errorf("resolve data file: %w", err)
	}
	gdb, err := db.Open(dataFile)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	appointmentService := service.NewAppointmentService(gdb)
	availabilityService := service.NewAvailabilityService(appointmentService, s.cfg.MaxLookaheadHours())
	historyService := service.NewHistoryService(gdb, s.cfg.HistoryTTL())
	s.history = historyService

	// The registry calls back into this server's own HTTP API so function
	// calls and direct API clients share one validation path.
	baseURL := fmt.Sprintf("http://%s:%d", s.cfg.Host(), s.resolvePort())
	registry := tools.NewRegistry(baseURL, s.cfg.MaxPartySize())

	modelService := service.NewModelService(s.cfg)
	chatModel, err := modelService.CreateChatModel(context.Background())
	if err != nil {
		return fmt.Errorf("create chat model: %w", err)
	}
	toolsModel, err := chatModel.WithTools(registry.Declarations())
	if err != nil {
		return fmt.Errorf("bind function declarations: %w", err)
	}

	orchestrator := service.NewChatOrchestrator(toolsModel, historyService, registry,
		s.cfg.MaxRetries(), s.cfg.MaxRateLimitRetries())

	appointmentHandler := handler.NewAppointmentHandler(appointmentService, availabilityService, s.cfg.MaxPartySize())
	diagnosticsHandler := handler.NewDiagnosticsHandler(historyService)
	chatHub := hub.NewChatHub(orchestrator)

	// Chat transport
	// /chat
	s.ginEngine.GET("/chat", chatHub.Handle)

	// Booking confirmation page, linked by the assistant after booking
	// /confirmation/:id
	s.ginEngine.GET("/confirmation/:id", appointmentHandler.Confirmation)

	// API group
	// /api
	apiGroup := s.ginEngine.Group("/api")

	// Appointment API routes
	// /api/appointments
	appointmentsGroup := apiGroup.Group("/appointments")
	appointmentsGroup.GET("", appointmentHandler.List)
	appointmentsGroup.POST("", appointmentHandler.Create)
	appointmentsGroup.GET("/available", appointmentHandler.Available)
	appointmentsGroup.GET(":id", appointmentHandler.Get)
	appointmentsGroup.PUT(":id", appointmentHandler.Update)
	appointmentsGroup.DELETE(":id", appointmentHandler.Delete)

	// Diagnostics API routes
	// /api/diagnostics
	diagGroup := apiGroup.Group("/diagnostics")
	diagGroup.GET("/history/:conversationId", diagnosticsHandler.Transcript)
	diagGroup.GET("/history/:conversationId/active", diagnosticsHandler.Active)

	return nil
}

// resolvePort returns the port the server will bind, honoring the
// FRONTDESK_PORT environment override.
func (s *Server) resolvePort() int {
	port := s.cfg.Port()
	if v := os.Getenv("FRONTDESK_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 && p <= 65535 {
			port = p
		} else {
			s.logger.Warn("Invalid FRONTDESK_PORT value, falling back to config", "value", v)
		}
	}
	return port
}

func (s *Server) Start(ctx context.Context) error {
	port := s.resolvePort()

	addr := fmt.Sprintf("%s:%d", s.cfg.Host(), port)
	srv := &http.Server{Addr: addr, Handler: s.ginEngine}

	// Attempt to listen first; if the port is occupied return immediately
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}

	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		s.port = tcpAddr.Port
	} else {
		s.port = port
	}

	s.history.StartJanitor(ctx)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ln)
	}()

	// Listen for context cancellation for graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	// Non-blocking: if startup fails immediately return error; otherwise
	// return nil to let main continue
	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	default:
	}

	s.logger.Info("Server listening", "addr", addr)
	return nil
}
