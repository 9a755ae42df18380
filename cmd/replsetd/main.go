package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hieutrieu/replset/admin"
	"github.com/hieutrieu/replset/cfg"
	"github.com/hieutrieu/replset/runtime"
	"github.com/hieutrieu/replset/telemetry"
	"github.com/hieutrieu/replset/topology"
)

func main() {
	flag.Parse()

	if err := cfg.Load(*cfg.ConfigPathFlag); err != nil {
		panic(err)
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid configuration: %v", err))
	}

	var writer io.Writer = zerolog.NewConsoleWriter()
	if cfg.Config.Logging.Format == "json" {
		writer = os.Stdout
	}
	gLog := zerolog.New(writer).
		With().
		Timestamp().
		Uint64("node_id", cfg.Config.NodeID).
		Logger()
	if cfg.Config.Logging.Verbose {
		log.Logger = gLog.Level(zerolog.DebugLevel)
	} else {
		log.Logger = gLog.Level(zerolog.InfoLevel)
	}

	log.Info().Msg("replset daemon starting")
	telemetry.InitializeTelemetry()
	telemetry.InitMetrics()

	configSnapshot, err := runtime.BuildConfigSnapshot(cfg.Config)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build replica-set configuration")
		return
	}

	coord := topology.NewCoordinator()
	coord.UpdateConfig(configSnapshot, time.Now())

	lastVoteStore := runtime.NewLastVoteStore(cfg.Config.DataDir)
	lastVote, err := lastVoteStore.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load persisted last vote")
		return
	}
	coord.LoadLastVote(lastVote)

	hub := runtime.NewHub()

	transport, err := runtime.NewNatsHeartbeatTransport(
		cfg.Config.Transport.URL,
		cfg.Config.ReplicaSet.SetName,
		cfg.Config.Transport.CompressAboveBytes,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect heartbeat transport")
		return
	}
	defer transport.Close()

	healthAddr := fmt.Sprintf("%s:%d", cfg.Config.Admin.Address, cfg.Config.Admin.Port+1)
	healthSrv, err := runtime.NewHealthServer(healthAddr, "replset")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start health server")
		return
	}

	node := runtime.NewNode(coord, cfg.Config.ReplicaSet.SetName, transport, hub, healthSrv, lastVoteStore)

	selfHost := ""
	if self, ok := configSnapshot.Self(); ok {
		selfHost = self.Host
	}
	if selfHost != "" {
		if err := node.Serve(selfHost); err != nil {
			log.Fatal().Err(err).Msg("failed to register heartbeat/vote handlers")
			return
		}
	} else {
		log.Warn().Msg("node is not a member of its own configuration, serving no inbound RPCs")
	}

	statusCollector := telemetry.NewStatusCollector(node.MetricsProvider(), 5*time.Second)
	statusCollector.Start()
	defer statusCollector.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go node.RunHeartbeats(ctx)
	go func() {
		if err := healthSrv.Serve(); err != nil {
			log.Error().Err(err).Msg("health server stopped")
		}
	}()

	var adminServer *http.Server
	if cfg.Config.Admin.Enabled {
		handlers := admin.NewHandlers(node)
		router := admin.NewRouter(handlers, cfg.Config.Admin.AuthToken)
		adminAddr := fmt.Sprintf("%s:%d", cfg.Config.Admin.Address, cfg.Config.Admin.Port)
		adminServer = &http.Server{Addr: adminAddr, Handler: router}
		go func() {
			log.Info().Str("address", adminAddr).Msg("admin HTTP surface listening")
			if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("admin server stopped")
			}
		}()
	}

	var metricsServer *http.Server
	if handler := telemetry.GetMetricsHandler(); handler != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", handler)
		metricsAddr := fmt.Sprintf("%s:%d", cfg.Config.Prometheus.Address, cfg.Config.Prometheus.Port)
		metricsServer = &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			log.Info().Str("address", metricsAddr).Msg("prometheus metrics listening")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	log.Info().
		Uint64("node_id", cfg.Config.NodeID).
		Str("set_name", cfg.Config.ReplicaSet.SetName).
		Str("data_dir", cfg.Config.DataDir).
		Msg("replset daemon is operational")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if adminServer != nil {
		_ = adminServer.Shutdown(shutdownCtx)
	}
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	healthSrv.Stop()
}
