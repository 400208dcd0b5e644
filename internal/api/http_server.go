package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"salon/internal/auth"
	"salon/internal/config"
	"salon/internal/domain"

	"github.com/rs/zerolog"
)

// Deps are the services the transports expose.
type Deps struct {
	Loyalty    domain.LoyaltyService
	Bookings   domain.BookingService
	CheckIn    domain.CheckInService
	Sales      domain.SalesService
	Inventory  domain.InventoryService
	Reports    domain.ReportService
	Verifier   auth.Verifier
	Tokens     *auth.TokenIssuer
	Authorizer *auth.Authorizer
	// Location is the salon time zone used for dates in queries.
	Location *time.Location
	// Ready reports whether the store answers; nil means always ready.
	Ready func(ctx context.Context) error
	// Services fills walk-in durations and hair-service prices left out of a request.
	Services config.ServiceCatalog
}

// HTTPServer is the JSON API used by the admin panel and the check-in page.
type HTTPServer struct {
	cfg    config.APIConfig
	deps   Deps
	server *http.Server
	logger *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, deps Deps, logger *zerolog.Logger) *HTTPServer {
	if deps.Location == nil {
		deps.Location = time.Local
	}
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "http").Logger()
	}
	s := &HTTPServer{cfg: cfg, deps: deps, logger: &base}

	mux := http.NewServeMux()
	s.routes(mux)

	handler := loggingMiddleware(s.logger, rateLimitMiddleware(newRateLimiter(cfg.RateLimit), mux))

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/v1/clients", s.handleRegisterClient)
	mux.HandleFunc("GET /api/v1/clients/card", s.handleCard)

	mux.Handle("GET /api/v1/clients", s.protect(s.handleListClients))
	mux.Handle("DELETE /api/v1/clients/{id}", s.protect(s.handleDeleteClient))
	mux.Handle("POST /api/v1/clients/{id}/visits", s.protect(s.handleRegisterVisit))
	mux.Handle("POST /api/v1/clients/{id}/hair-services", s.protect(s.handleHairService))
	mux.Handle("POST /api/v1/clients/{id}/redeem/{reward}", s.protect(s.handleRedeem))

	mux.Handle("GET /api/v1/slots/next", s.protect(s.handleNextSlot))
	mux.Handle("GET /api/v1/slots", s.protect(s.handleFreeSlots))
	mux.Handle("GET /api/v1/bookings", s.protect(s.handleListBookings))
	mux.Handle("POST /api/v1/bookings", s.protect(s.handleCreateBooking))
	mux.Handle("POST /api/v1/bookings/block", s.protect(s.handleBlockSlot))
	mux.Handle("DELETE /api/v1/bookings/{id}", s.protect(s.handleCancelBooking))
	mux.Handle("GET /api/v1/services", s.protect(s.handleListServices))
	mux.Handle("POST /api/v1/walk-ins", s.protect(s.handleWalkIn))

	mux.Handle("POST /api/v1/sales/checkout", s.protect(s.handleCheckout))
	mux.Handle("DELETE /api/v1/transactions/{id}", s.protect(s.handleDeleteTransaction))
	mux.Handle("GET /api/v1/products", s.protect(s.handleListProducts))
	mux.Handle("GET /api/v1/products/low-stock", s.protect(s.handleLowStock))
	mux.Handle("POST /api/v1/products", s.protect(s.handleCreateProduct))
	mux.Handle("POST /api/v1/products/{id}/stock", s.protect(s.handleAdjustStock))
	mux.Handle("GET /api/v1/reports/summary", s.protect(s.handleSummary))
	mux.Handle("GET /api/v1/reports/export", s.protect(s.handleExport))
}

// Handler exposes the full middleware chain.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			loggerFrom(r.Context(), s.logger).Warn().Err(err).Msg("not ready")
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
