// Command server runs the driving simulation and serves it over websocket.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"x-drive/backend/internal/config"
	"x-drive/backend/internal/game"
	"x-drive/backend/internal/hud"
	"x-drive/backend/internal/influx"
	"x-drive/backend/internal/input"
	"x-drive/backend/internal/logging"
	"x-drive/backend/internal/transport/ws"
	"x-drive/backend/internal/world"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (json, yaml or toml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLogger := logging.New(os.Stderr, "info", true)
		bootLogger.Fatal().Err(err).Msg("Failed to load config")
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server stopped with error")
	}
	logger.Info().Msg("Server stopped")
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	log := logging.Component(logger, "Main")

	sessionCfg := game.DefaultSessionConfig()
	checkpoints, err := world.NewCheckpoints(sessionCfg.Checkpoints)
	if err != nil {
		return errors.Wrap(err, "building track")
	}
	sessionCfg.Scene = world.NewTrackManager(checkpoints, world.Vector3{})

	session, err := game.NewSession(sessionCfg, logger)
	if err != nil {
		return errors.Wrap(err, "creating session")
	}
	provider := input.NewProvider(nil)

	instruments, err := game.NewInstruments(nil)
	if err != nil {
		return errors.Wrap(err, "creating instruments")
	}

	ticker := game.NewTicker(cfg.Game.TargetTPS, logger, instruments)
	ticker.SetMaxFrameDelta(cfg.Game.MaxFrameDelta)
	ticker.OnPause(session)

	server := ws.NewServer(session, provider, ticker, logger)
	server.SetPingInterval(cfg.Server.PingInterval)

	broadcast := game.NewBroadcastSystem(session, server, cfg.Server.BroadcastInterval, cfg.Game.FrameSubBuffer, logger)
	defer broadcast.Close()

	ticker.RegisterSystem(game.NewSimulationSystem(session, provider, instruments))
	ticker.RegisterSystem(broadcast)
	ticker.RegisterSystem(game.NewMetricsSystem(ticker, session, cfg.Game.MetricsEvery, logger))
	if cfg.HUD.Enabled {
		ticker.RegisterSystem(hud.NewSystem(session.Telemetry(), os.Stderr, cfg.HUD.Interval))
	}

	if cfg.Influx.Enabled {
		sink, err := influx.NewSink(ctx, influx.Config{
			URL:       cfg.Influx.URL,
			Token:     cfg.Influx.Token,
			Org:       cfg.Influx.Org,
			Bucket:    cfg.Influx.Bucket,
			SessionID: cfg.SessionID,
		}, logger)
		if err != nil {
			return errors.Wrap(err, "creating influx sink")
		}
		frames, unsubscribe := session.Subscribe(cfg.Game.FrameSubBuffer)
		sinkDone := make(chan struct{})
		go func() {
			sink.Run(ctx, frames)
			close(sinkDone)
		}()
		defer func() {
			unsubscribe()
			<-sinkDone
			sink.Close()
		}()
	}

	staticDir := cfg.Server.StaticDir
	if staticDir != "" {
		if _, err := os.Stat(staticDir); os.IsNotExist(err) {
			log.Warn().Str("dir", staticDir).Msg("Static directory does not exist")
		} else {
			log.Info().Str("dir", staticDir).Msg("Serving static files")
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Routes(staticDir),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if err := ticker.Start(ctx); err != nil {
		return errors.Wrap(err, "starting ticker")
	}
	defer ticker.Stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return errors.Wrap(err, "http server")
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Graceful shutdown failed")
	}
	return nil
}
