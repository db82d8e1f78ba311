// Package api provides the HTTP API for observing the economy.
// GET endpoints are public (read-only observation).
// POST and DELETE endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/talgya/tradeworld/internal/agents"
	"github.com/talgya/tradeworld/internal/economy"
	"github.com/talgya/tradeworld/internal/engine"
	"github.com/talgya/tradeworld/internal/market"
	"github.com/talgya/tradeworld/internal/persistence"
)

// Archive is the part of the persistence layer the API reads.
type Archive interface {
	PriceHistory(run uuid.UUID, item string) ([]market.PriceStats, error)
	Summaries(run uuid.UUID) ([]persistence.Summary, error)
	RecentEvents(run uuid.UUID, limit int) ([]engine.Event, error)
}

// Server serves the simulation state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine // Nil when the clock is not running
	DB       Archive        // Nil when no archive is configured
	Run      uuid.UUID
	Port     int
	AdminKey string // Bearer token for admin endpoints. Empty = admin disabled.
	Version  string
	Commit   string
	Started  time.Time
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	adminLimiter := NewRateLimiter(60, time.Minute)
	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return s.adminOnly(RateLimitMiddleware(adminLimiter, h))
	}

	r := mux.NewRouter()
	v1 := r.PathPrefix("/api/v1").Subrouter()

	// Public endpoints.
	v1.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	v1.HandleFunc("/manufacturers", s.handleManufacturers).Methods(http.MethodGet)
	v1.HandleFunc("/manufacturers/{id:[0-9]+}", s.handleManufacturer).Methods(http.MethodGet)
	v1.HandleFunc("/workers", s.handleWorkers).Methods(http.MethodGet)
	v1.HandleFunc("/orders", s.handleOrders).Methods(http.MethodGet)
	v1.HandleFunc("/prices", s.handlePrices).Methods(http.MethodGet)
	v1.HandleFunc("/prices/{item}", s.handlePriceSeries).Methods(http.MethodGet)
	v1.HandleFunc("/history/summary", s.handleArchivedSummary).Methods(http.MethodGet)
	v1.HandleFunc("/history/{item}", s.handleArchivedHistory).Methods(http.MethodGet)
	v1.HandleFunc("/market", s.handleMarket).Methods(http.MethodGet)
	v1.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)

	// Admin endpoints.
	v1.HandleFunc("/agents/{id:[0-9]+}/pin", admin(s.handlePin)).Methods(http.MethodPost, http.MethodDelete)
	v1.HandleFunc("/speed", s.handleSpeed).Methods(http.MethodGet)
	v1.HandleFunc("/speed", admin(s.handleSpeed)).Methods(http.MethodPost)

	return corsMiddleware(logMiddleware(r))
}

// Start serves the API until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", srv.Addr, "admin_auth", s.AdminKey != "", "archive", s.DB != nil)

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	}
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func logMiddleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("request", "method", r.Method, "url", r.URL.String(), "remote", r.RemoteAddr)
		h.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on mutating requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no TRADESIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"name":    "tradeworld",
		"version": s.Version,
		"commit":  s.Commit,
		"totals":  s.Sim.Totals(),
		"running": s.Eng != nil && s.Eng.Interval() > 0,
	}
	if s.Eng != nil {
		status["interval_seconds"] = s.Eng.Interval().Seconds()
		status["turn_active"] = s.Eng.Clock.TurnActive()
	}
	if !s.Started.IsZero() {
		status["uptime_seconds"] = int64(time.Since(s.Started).Seconds())
	}
	if s.Run != uuid.Nil {
		status["run"] = s.Run.String()
	}
	writeJSON(w, status)
}

func (s *Server) handleManufacturers(w http.ResponseWriter, r *http.Request) {
	by := engine.ManufacturerSort(r.URL.Query().Get("sort"))
	switch by {
	case "", engine.SortByName, engine.SortByProduction, engine.SortByMoney, engine.SortByWorkers,
		engine.SortByItems, engine.SortByForSale, engine.SortByOnMarket, engine.SortByBuyOrders:
	default:
		http.Error(w, "unknown sort", http.StatusBadRequest)
		return
	}
	writeJSON(w, s.Sim.Manufacturers(by))
}

func (s *Server) handleManufacturer(w http.ResponseWriter, r *http.Request) {
	id, ok := agentID(w, r)
	if !ok {
		return
	}
	view, err := s.Sim.Manufacturer(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, view)
}

func (s *Server) handleWorkers(w http.ResponseWriter, r *http.Request) {
	by := engine.WorkerSort(r.URL.Query().Get("sort"))
	switch by {
	case "", engine.WorkersByName, engine.WorkersBySalary, engine.WorkersByMoney, engine.WorkersByEmployer:
	default:
		http.Error(w, "unknown sort", http.StatusBadRequest)
		return
	}
	writeJSON(w, s.Sim.Workers(by))
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	buys, sells := s.Sim.Orders()
	if buys == nil {
		buys = []market.BuyOrder{}
	}
	if sells == nil {
		sells = []market.SellOrder{}
	}
	writeJSON(w, map[string]any{"buy": buys, "sell": sells})
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	day, prices := s.Sim.TodaysPrices()
	writeJSON(w, map[string]any{"day": day, "prices": prices})
}

func (s *Server) handlePriceSeries(w http.ResponseWriter, r *http.Request) {
	item, err := s.Sim.Catalog.Lookup(mux.Vars(r)["item"])
	if err != nil {
		writeError(w, err)
		return
	}
	series := s.Sim.PriceSeries(item)
	if series == nil {
		series = []market.PriceStats{}
	}
	writeJSON(w, map[string]any{"item": item, "history": series})
}

func (s *Server) handleArchivedHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "no archive configured", http.StatusServiceUnavailable)
		return
	}
	item, err := s.Sim.Catalog.Lookup(mux.Vars(r)["item"])
	if err != nil {
		writeError(w, err)
		return
	}
	series, err := s.DB.PriceHistory(s.Run, item.Name)
	if err != nil {
		slog.Error("archive read failed", "item", item.Name, "error", err)
		http.Error(w, "archive read failed", http.StatusInternalServerError)
		return
	}
	if series == nil {
		series = []market.PriceStats{}
	}
	writeJSON(w, map[string]any{"item": item, "run": s.Run.String(), "history": series})
}

func (s *Server) handleArchivedSummary(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "no archive configured", http.StatusServiceUnavailable)
		return
	}
	days, err := s.DB.Summaries(s.Run)
	if err != nil {
		slog.Error("archive read failed", "error", err)
		http.Error(w, "archive read failed", http.StatusInternalServerError)
		return
	}
	if days == nil {
		days = []persistence.Summary{}
	}
	writeJSON(w, map[string]any{"run": s.Run.String(), "days": days})
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.MarketPressure())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	pinned := r.URL.Query().Get("pinned") == "true"

	var events []engine.Event
	if r.URL.Query().Get("archived") == "true" {
		if s.DB == nil {
			http.Error(w, "no archive configured", http.StatusServiceUnavailable)
			return
		}
		var err error
		if events, err = s.DB.RecentEvents(s.Run, limit); err != nil {
			slog.Error("archive read failed", "error", err)
			http.Error(w, "archive read failed", http.StatusInternalServerError)
			return
		}
		if pinned {
			events = slices.DeleteFunc(events, func(e engine.Event) bool {
				return e.Agent == 0 || !s.Sim.IsPinned(e.Agent)
			})
		}
	} else {
		events = s.Sim.RecentEvents(limit, pinned)
	}
	if events == nil {
		events = []engine.Event{}
	}
	writeJSON(w, events)
}

func (s *Server) handlePin(w http.ResponseWriter, r *http.Request) {
	id, ok := agentID(w, r)
	if !ok {
		return
	}
	var err error
	if r.Method == http.MethodDelete {
		err = s.Sim.Unpin(id)
	} else {
		err = s.Sim.Pin(id)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"id": id, "pinned": s.Sim.IsPinned(id)})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "clock not running", http.StatusServiceUnavailable)
		return
	}
	if r.Method == http.MethodPost {
		var req struct {
			IntervalSeconds float64 `json:"interval_seconds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.IntervalSeconds < 0 || req.IntervalSeconds > 86400 {
			http.Error(w, "interval_seconds must be 0-86400", http.StatusBadRequest)
			return
		}
		d := time.Duration(req.IntervalSeconds * float64(time.Second))
		s.Eng.SetInterval(d)
		slog.Info("turn interval changed", "interval", d)
	}

	writeJSON(w, map[string]float64{"interval_seconds": s.Eng.Interval().Seconds()})
}

func agentID(w http.ResponseWriter, r *http.Request) (agents.AgentID, bool) {
	n, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return agents.AgentID(n), true
}

// writeError maps domain errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrUnknownAgent), errors.Is(err, economy.ErrUnknownItem):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Warn("write response", "error", err)
	}
}
