// PolicyStore server
// Versioned policy documents with two-stage approval workflows
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nainya/policystore/internal/config"
	"github.com/nainya/policystore/internal/logger"
	"github.com/nainya/policystore/internal/metrics"
	"github.com/nainya/policystore/internal/service"
	"github.com/nainya/policystore/pkg/blob"
	"github.com/nainya/policystore/pkg/directory"
)

var (
	configPath = flag.String("config", "", "YAML config file path")
	dbPath     = flag.String("db", "", "Database file path (overrides config)")
	port       = flag.Int("port", 0, "Observability port (overrides config)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}
	if *port != 0 {
		cfg.Server.MetricsPort = *port
	}

	logger.InitGlobalLogger(logger.Config{
		Level:      cfg.Log.Level,
		Pretty:     cfg.Log.Pretty,
		WithCaller: cfg.Log.WithCaller,
	})
	log := logger.GetGlobalLogger()
	log.LogServerStart(cfg.Server.MetricsPort, cfg.Store.Path)

	m := metrics.NewMetrics()

	svc, err := service.New(cfg.Store.Path, blob.NewMemoryStore(), directory.OpenDirectory{}, log, m)
	if err != nil {
		log.Fatal("Failed to open store").Err(err).Send()
	}
	defer svc.Close()

	obs := service.NewObservabilityServer(cfg.Server.MetricsPort, svc, log)
	go func() {
		if err := obs.Start(); err != nil {
			log.Fatal("Observability server failed").Err(err).Send()
		}
	}()

	log.LogServerReady(cfg.Server.MetricsPort)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.LogServerShutdown()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := obs.Shutdown(ctx); err != nil {
		log.Error("Shutdown error").Err(err).Send()
	}
}
