// Package api provides the HTTP API for observing and building the city.
// GET endpoints are public (read-only observation). Construction is public
// but rate limited; clock and speed control require a bearer token.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/mini-city/internal/buildings"
	"github.com/talgya/mini-city/internal/economy"
	"github.com/talgya/mini-city/internal/engine"
	"github.com/talgya/mini-city/internal/persistence"
	"github.com/talgya/mini-city/internal/tile"
	"github.com/talgya/mini-city/internal/world"
)

// Options configure a Server.
type Options struct {
	Port           int
	AdminKey       string  // Bearer token for admin POSTs. Empty = admin disabled.
	ConstructRate  float64 // Construct requests per second per client
	ConstructBurst int
	TrustedProxies []netip.Prefix // Peers whose X-Forwarded-For is believed
}

// Server serves one game over HTTP.
type Server struct {
	game    *engine.Game
	eng     *engine.Engine
	journal *persistence.Journal // May be nil; /events then answers 503.
	opts    Options

	bridge   *EventBridge
	upgrader websocket.Upgrader
	limiter  *RateLimiter
	handler  http.Handler
}

// NewServer builds the routes for g. eng and journal may be nil.
func NewServer(g *engine.Game, eng *engine.Engine, journal *persistence.Journal, opts Options) *Server {
	if opts.ConstructRate <= 0 {
		opts.ConstructRate = 2
	}
	if opts.ConstructBurst < 1 {
		opts.ConstructBurst = 5
	}
	s := &Server{
		game:    g,
		eng:     eng,
		journal: journal,
		opts:    opts,
		bridge:  NewEventBridge(g.Clock, g.Storage.Buildings),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		limiter: NewRateLimiter(opts.ConstructRate, opts.ConstructBurst),
	}
	s.limiter.TrustProxies(opts.TrustedProxies...)

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/clock", s.handleClock)
	mux.HandleFunc("GET /api/v1/can_construct", s.handleCanConstruct)
	mux.HandleFunc("GET /api/v1/buildings", s.handleBuildings)
	mux.HandleFunc("GET /api/v1/building/{q}/{r}", s.handleBuilding)
	mux.HandleFunc("GET /api/v1/territory/{q}/{r}", s.handleTerritory)
	mux.HandleFunc("GET /api/v1/terrain/{q}/{r}", s.handleTerrain)
	mux.HandleFunc("GET /api/v1/tiles", s.handleTiles)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/stream", s.handleStream)
	mux.HandleFunc("POST /api/v1/construct", RateLimitMiddleware(s.limiter, s.handleConstruct))

	// Admin endpoints.
	mux.HandleFunc("POST /api/v1/clock", s.adminOnly(s.handleClock))
	mux.HandleFunc("GET /api/v1/speed", s.handleSpeed)
	mux.HandleFunc("POST /api/v1/speed", s.adminOnly(s.handleSpeed))

	s.handler = corsMiddleware(mux)
	return s
}

// Handler returns the routed handler, CORS included.
func (s *Server) Handler() http.Handler { return s.handler }

// Bridge returns the stream fan-out.
func (s *Server) Bridge() *EventBridge { return s.bridge }

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.opts.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.opts.AdminKey != "")

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	}
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
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
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.opts.AdminKey
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.opts.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no CITYSIM_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report := s.game.Report()
	status := map[string]any{
		"name":        "citysim",
		"epoch":       report.Epoch,
		"buildings":   report.Buildings,
		"territories": len(report.Territories),
		"visible":     report.Visible,
		"money":       report.Total.Stock(economy.Money),
		"last_tick":   report.LastTick,
		"last_tock":   report.LastTock,
		"streaming":   s.bridge.Clients(),
	}
	if s.eng != nil {
		status["speed"] = s.eng.Speed()
		status["running"] = s.eng.Running()
	}
	writeJSON(w, status)
}

// handleClock reports the epoch; POST advances one full cycle.
func (s *Server) handleClock(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		epoch := s.game.Tick()
		slog.Info("manual tick", "epoch", epoch)
	}
	writeJSON(w, map[string]uint64{"epoch": s.game.Clock.Epoch()})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.eng == nil {
		http.Error(w, "engine not running", http.StatusServiceUnavailable)
		return
	}
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.eng.Speed()})
}

type constructRequest struct {
	Q    int       `json:"q"`
	R    int       `json:"r"`
	Tile tile.Name `json:"tile"`
}

func (s *Server) handleConstruct(w http.ResponseWriter, r *http.Request) {
	var req constructRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	c := world.HexCoord{Q: req.Q, R: req.R}
	if err := s.game.TryConstruct(c, req.Tile); err != nil {
		http.Error(w, err.Error(), constructStatus(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(buildingSummary{Coordinate: c, Tile: req.Tile})
}

func (s *Server) handleCanConstruct(w http.ResponseWriter, r *http.Request) {
	q, err1 := strconv.Atoi(r.URL.Query().Get("q"))
	rr, err2 := strconv.Atoi(r.URL.Query().Get("r"))
	name := tile.Name(r.URL.Query().Get("tile"))
	if err1 != nil || err2 != nil || name == "" {
		http.Error(w, "usage: /api/v1/can_construct?q=&r=&tile=", http.StatusBadRequest)
		return
	}
	resp := map[string]any{"ok": true}
	if err := s.game.Controller.CanConstruct(world.HexCoord{Q: q, R: rr}, name); err != nil {
		resp["ok"] = false
		resp["reason"] = reason(err)
	}
	writeJSON(w, resp)
}

// constructStatus maps a construction outcome to an HTTP status.
func constructStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrCoordinateOccupied):
		return http.StatusConflict
	case errors.Is(err, engine.ErrInvalidTerrain):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrInvalidTerritory):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrInsufficientResources):
		return http.StatusPaymentRequired
	case errors.Is(err, engine.ErrUnknownTile):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func reason(err error) string {
	var ce *engine.ConstructionError
	if errors.As(err, &ce) {
		return ce.Err.Error()
	}
	return err.Error()
}

type buildingSummary struct {
	Coordinate world.HexCoord `json:"coordinate"`
	Tile       tile.Name      `json:"tile"`
}

func (s *Server) handleBuildings(w http.ResponseWriter, r *http.Request) {
	b := s.game.Storage.Buildings
	out := []buildingSummary{}
	for _, c := range b.Coordinates() {
		t, ok := b.TileAt(c)
		if !ok {
			continue
		}
		out = append(out, buildingSummary{Coordinate: c, Tile: t.Name})
	}
	writeJSON(w, out)
}

func (s *Server) handleBuilding(w http.ResponseWriter, r *http.Request) {
	c, ok := pathCoord(w, r)
	if !ok {
		return
	}
	ref, ok := s.game.Storage.Buildings.Get(c)
	if !ok {
		http.Error(w, "no building at coordinate", http.StatusNotFound)
		return
	}
	resp := map[string]any{
		"coordinate": c,
		"tile":       ref.Tile().Name,
		"state":      ref.Instance().Snapshot(),
	}
	ref.Release()
	writeJSON(w, resp)
}

func (s *Server) handleTerritory(w http.ResponseWriter, r *http.Request) {
	c, ok := pathCoord(w, r)
	if !ok {
		return
	}
	var resp map[string]any
	err := s.game.Storage.View(func(st *engine.Storage) error {
		id, ok := st.Territories.Get(c)
		if !ok {
			return engine.ErrInvalidTerritory
		}
		rg, _ := st.Territories.Range(id)
		pool, err := st.Pool.Freeze(id)
		if err != nil {
			return err
		}
		defer pool.Release()
		resp = map[string]any{
			"id":         id,
			"cells":      rg.Len(),
			"warehouses": pool.Warehouses(),
			"pool":       pool.State(),
		}
		return nil
	})
	switch {
	case errors.Is(err, engine.ErrInvalidTerritory), errors.Is(err, buildings.ErrUnknownTerritory):
		http.Error(w, "coordinate is outside any territory", http.StatusNotFound)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		writeJSON(w, resp)
	}
}

func (s *Server) handleTerrain(w http.ResponseWriter, r *http.Request) {
	c, ok := pathCoord(w, r)
	if !ok {
		return
	}
	st := s.game.Storage
	resp := map[string]any{
		"coordinate": c,
		"terrain":    st.Terrain.TerrainAt(c),
		"visible":    st.FOW.Visible(c),
		"occupied":   st.Buildings.Occupied(c),
	}
	if id, ok := st.Territories.Get(c); ok {
		resp["territory"] = id
	}
	writeJSON(w, resp)
}

func (s *Server) handleTiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.game.Catalog.Tiles())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		http.Error(w, "journal disabled", http.StatusServiceUnavailable)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, 500)
	}
	events, err := s.journal.RecentEvents(limit)
	if err != nil {
		slog.Error("read events failed", "error", err)
		http.Error(w, "read events failed", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []persistence.Event{}
	}
	writeJSON(w, events)
}

// pathCoord reads {q} and {r} from the route, answering 400 on failure.
func pathCoord(w http.ResponseWriter, r *http.Request) (world.HexCoord, bool) {
	q, err1 := strconv.Atoi(r.PathValue("q"))
	rr, err2 := strconv.Atoi(r.PathValue("r"))
	if err1 != nil || err2 != nil {
		http.Error(w, "invalid coordinates", http.StatusBadRequest)
		return world.HexCoord{}, false
	}
	return world.HexCoord{Q: q, R: rr}, true
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
