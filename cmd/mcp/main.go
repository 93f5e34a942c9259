package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/emmett/voxrec/internal/app"
	"github.com/emmett/voxrec/internal/config"
	"github.com/emmett/voxrec/internal/logging"
	"github.com/emmett/voxrec/internal/server/mcp"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file (default: ~/.voxrecrc or /etc/voxrec/config.yaml)")
	audioDevice = flag.String("device", "", "Capture device index, ID or name")
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("voxrec MCP v%s\n", Version)
		fmt.Printf("  Commit:  %s\n", GitCommit)
		fmt.Printf("  Branch:  %s\n", GitBranch)
		fmt.Printf("  Built:   %s\n", BuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWithFallback(*configFile)
	if err != nil {
		return err
	}
	if *audioDevice != "" {
		cfg.Audio.Device = *audioDevice
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// stdout carries the protocol, so logs must stay on stderr or in a file.
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

	fmt.Fprintf(os.Stderr, "Starting MCP server...\n")
	fmt.Fprintf(os.Stderr, "Protocol: Model Context Protocol (stdio transport)\n")
	fmt.Fprintf(os.Stderr, "Version: %s (commit: %s)\n\n", Version, GitCommit)
	printClientConfig()

	format, err := cfg.AudioFormat()
	if err != nil {
		return err
	}

	session, err := app.OpenSession(app.SessionConfig{
		Device:       cfg.Audio.Device,
		Format:       format,
		PollInterval: cfg.Recording.PollInterval,
		Logger:       log,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	server := mcp.NewServer(mcp.Config{
		ServerName:    "voxrec-mcp",
		ServerVersion: Version,
	}, session.Recorder(), log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "MCP server ready. Listening on stdin/stdout...\n")
	if err := server.Start(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// printClientConfig prints the snippet MCP clients need to launch this binary
func printClientConfig() {
	execPath, err := os.Executable()
	if err != nil {
		execPath = "voxrec-mcp"
	}

	type serverConfig struct {
		Command string   `json:"command"`
		Args    []string `json:"args"`
	}
	clientConfig := struct {
		MCPServers map[string]serverConfig `json:"mcpServers"`
	}{
		MCPServers: map[string]serverConfig{
			"voxrec": {Command: execPath, Args: []string{}},
		},
	}

	if data, err := json.MarshalIndent(clientConfig, "", "  "); err == nil {
		fmt.Fprintf(os.Stderr, "MCP Client Configuration:\n%s\n\n", data)
	}
}
