// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"

	"github.com/hollow-creek/chatbridge/internal/app"
	"github.com/hollow-creek/chatbridge/internal/config"
	"github.com/hollow-creek/chatbridge/internal/platform"
)

var version = "0.1.0"

func main() {
	var (
		configPath  string
		debug       bool
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "Path to config file (default: ~/.chatbridge/config.yaml)")
	flag.StringVar(&configPath, "c", "", "Path to config file (short)")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.BoolVar(&showVersion, "v", false, "Show version (short)")
	flag.Parse()

	if showVersion {
		fmt.Printf("chatbridge %s\n", version)
		os.Exit(0)
	}

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("resolve home directory: %v", err)
		}
		configPath = filepath.Join(home, ".chatbridge", "config.yaml")
	}

	cfg, err := config.NewLoader().Load(configPath)
	if err != nil {
		log.Fatalf("load config %s: %v", configPath, err)
	}
	cfg.Debug = cfg.Debug || debug

	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))

	plat, err := buildPlatform(cfg)
	if err != nil {
		log.Fatalf("build platform adapter: %v", err)
	}

	application, err := app.New(app.Options{
		Config:       cfg,
		Platform:     plat,
		AppName:      "chatbridge",
		BuildVersion: version,
		Log:          logger,
	})
	if err != nil {
		log.Fatalf("create app: %v", err)
	}

	ctx := context.Background()
	if err := application.Initialize(ctx); err != nil {
		log.Fatalf("initialize app: %v", err)
	}
	if err := application.Start(ctx); err != nil {
		log.Fatalf("start app: %v", err)
	}

	if cfg.Server.Addr != "" {
		go serveHealth(cfg.Server.Addr, application, logger)
	}

	if err := application.Run(ctx); err != nil {
		log.Fatalf("app error: %v", err)
	}
}

// buildPlatform resolves the Formatter for the configured chat backend
// kind and wraps it in the in-memory Fake transport. A real Mattermost
// or Slack realtime client is a deployment-specific plugin outside
// this module's scope (spec.md §6); chatbridge ships the formatter
// logic for both dialects and a runnable loopback transport so the
// daemon starts end to end without one.
func buildPlatform(cfg config.Config) (platform.Platform, error) {
	var formatter platform.Formatter
	switch cfg.Platform.Kind {
	case "slack":
		formatter = platform.Slack{}
	case "mattermost", "":
		formatter = platform.Mattermost{}
	default:
		return nil, fmt.Errorf("unknown platform kind %q", cfg.Platform.Kind)
	}
	limits := platform.MessageLimits{MaxLength: 16000, HardThreshold: 12000}
	fake := platform.NewFake(formatter, limits)
	for _, u := range cfg.Platform.AllowedUsers {
		fake.Allow(u)
	}
	return fake, nil
}

// serveHealth runs the optional status endpoint a process supervisor
// or chatbridgectl-style operator tool can poll or trigger. Grounded
// on the teacher's internal/api.NewRouter (gorilla/mux router, one
// handler per concern), stripped to the two routes chatbridge needs —
// no dashboard, no terminal/proxy/log/workflow routes.
func serveHealth(addr string, application *app.App, log *slog.Logger) {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","version":%q}`, version)
	}).Methods(http.MethodGet)

	r.HandleFunc("/cleanup", func(w http.ResponseWriter, req *http.Request) {
		application.TriggerCleanup(req.Context())
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok"}`)
	}).Methods(http.MethodPost)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("health endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Warn("health endpoint stopped", "error", err)
	}
}
