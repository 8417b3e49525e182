// Command citysim runs a hex-grid economic city in real time and serves it
// over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"

	"github.com/talgya/mini-city/internal/api"
	"github.com/talgya/mini-city/internal/config"
	"github.com/talgya/mini-city/internal/engine"
	"github.com/talgya/mini-city/internal/persistence"
	"github.com/talgya/mini-city/internal/tile"
	"github.com/talgya/mini-city/internal/world"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := run(cfg); err != nil {
		slog.Error("citysim failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	// ── Journal ───────────────────────────────────────────────────────
	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	journal, err := persistence.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer func() {
		if err := journal.Close(); err != nil {
			slog.Error("journal close failed", "error", err)
		}
	}()
	slog.Info("journal opened", "path", cfg.DBPath)

	// ── Terrain (always regenerated, deterministic from seed) ─────────
	slog.Info("generating terrain...", "seed", cfg.Seed, "radius", cfg.Radius)
	worldMap := world.Generate(cfg.Generation())
	for t, c := range world.TerrainCounts(worldMap) {
		slog.Debug("terrain", "type", world.TerrainName(t), "count", c)
	}

	// ── Catalog ───────────────────────────────────────────────────────
	var catalog *tile.Catalog
	if cfg.CatalogPath != "" {
		catalog, err = tile.LoadCatalog(cfg.CatalogPath)
	} else {
		catalog, err = tile.DefaultCatalog()
	}
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	slog.Info("catalog loaded", "tiles", len(catalog.Names()))

	// ── Game ──────────────────────────────────────────────────────────
	game := engine.NewGame(worldMap, catalog, engine.Options{Workers: cfg.Workers})
	defer game.Close()
	journal.Attach(game.Clock, game.Storage.Buildings)

	startEpoch, resumed, err := journal.LastEpoch()
	if err != nil {
		return fmt.Errorf("read last epoch: %w", err)
	}
	if resumed {
		game.Clock.SetEpoch(startEpoch)
	}

	eng := engine.NewEngine(game, cfg.TickInterval, cfg.ReportEvery)
	eng.SetSpeed(cfg.Speed)

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.AdminKey == "" {
		slog.Warn("CITYSIM_ADMIN_KEY not set; admin POST endpoints will be disabled")
	}
	proxies, err := cfg.Proxies()
	if err != nil {
		return err
	}
	server := api.NewServer(game, eng, journal, api.Options{
		Port:           cfg.APIPort,
		AdminKey:       cfg.AdminKey,
		ConstructRate:  cfg.ConstructRate,
		ConstructBurst: cfg.ConstructBurst,
		TrustedProxies: proxies,
	})

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		err := server.ListenAndServe(ctx)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			slog.Error("HTTP server error", "error", err)
			stop()
		}
		serveErr <- err
	}()

	fmt.Printf("\ncitysim is up: %s hexes, %d building types.\n",
		humanize.Comma(int64(worldMap.HexCount())), len(catalog.Names()))
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.APIPort)
	if resumed {
		fmt.Printf("Epoch counter resumed at %d (buildings are not restored)\n", startEpoch)
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)
	stop()

	// Final flush on shutdown.
	game.Storage.Buildings.Sync()
	if err := journal.SaveEpoch(game.Clock.Epoch()); err != nil {
		slog.Error("final save failed", "error", err)
	}
	fmt.Println("Simulation stopped. Journal flushed.")
	return <-serveErr
}
