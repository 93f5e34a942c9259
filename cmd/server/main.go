package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/emmett/voxrec/internal/app"
	"github.com/emmett/voxrec/internal/config"
	"github.com/emmett/voxrec/internal/logging"
	"github.com/emmett/voxrec/internal/metrics"
	grpcserver "github.com/emmett/voxrec/internal/server/grpc"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file (default: ~/.voxrecrc or /etc/voxrec/config.yaml)")
	host        = flag.String("host", "", "gRPC listen host")
	port        = flag.Int("port", 0, "gRPC server port")
	metricsAddr = flag.String("metrics-addr", "", "Address for the Prometheus /metrics endpoint, empty to disable")
	audioDevice = flag.String("device", "", "Capture device index, ID or name")
	logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error")
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("voxrec gRPC Server v%s\n", Version)
		fmt.Printf("  Commit:  %s\n", GitCommit)
		fmt.Printf("  Branch:  %s\n", GitBranch)
		fmt.Printf("  Built:   %s\n", BuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWithFallback(*configFile)
	if err != nil {
		return err
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("starting voxrec gRPC server", zap.String("version", Version), zap.String("commit", GitCommit))

	format, err := cfg.AudioFormat()
	if err != nil {
		return err
	}

	m := metrics.New()
	session, err := app.OpenSession(app.SessionConfig{
		Device:       cfg.Audio.Device,
		Format:       format,
		PollInterval: cfg.Recording.PollInterval,
		Logger:       log,
		Metrics:      m,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	server := grpcserver.NewServer(grpcserver.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}, session.Recorder(), log)

	var metricsServer *http.Server
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsServer = &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info("metrics listening", zap.String("addr", cfg.Server.MetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	// Handle shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		server.Stop()
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}
	}()

	return server.Start()
}

func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Server.Host = *host
		case "port":
			cfg.Server.Port = *port
		case "metrics-addr":
			cfg.Server.MetricsAddr = *metricsAddr
		case "device":
			cfg.Audio.Device = *audioDevice
		case "log-level":
			cfg.Log.Level = *logLevel
		}
	})
}
