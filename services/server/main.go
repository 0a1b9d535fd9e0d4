package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"github.com/HORNET-Storage/hornet-gatekeeper/lib/cache"
	"github.com/HORNET-Storage/hornet-gatekeeper/lib/config"
	"github.com/HORNET-Storage/hornet-gatekeeper/lib/logging"
	"github.com/HORNET-Storage/hornet-gatekeeper/lib/metrics"
	"github.com/HORNET-Storage/hornet-gatekeeper/lib/relay"
	"github.com/HORNET-Storage/hornet-gatekeeper/lib/stores/badger"
	ws "github.com/HORNET-Storage/hornet-gatekeeper/lib/transports/websocket"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logging.InitLogger(cfg.Logging); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.GetLogger().Close()

	policy, err := config.PolicyFromConfig(cfg)
	if err != nil {
		logging.Fatalf("Invalid write policy: %v", err)
	}
	if policy.RelayOwner == "" {
		logging.Warn("No relay owner configured, the pass list is empty")
	}
	logging.Info("Write policy loaded", logging.Fields{
		"owner":          policy.RelayOwner,
		"all_pass":       policy.AllPass,
		"follows_pass":   policy.FollowsPass,
		"pow_enabled":    policy.ProofOfWorkEnabled,
		"pow_difficulty": policy.ProofOfWorkDifficulty,
	})

	storePath := cfg.Store.Path
	if storePath == "" {
		storePath = config.GetPath("events")
	}
	store, err := badger.Open(badger.Options{
		Path:     storePath,
		InMemory: cfg.Store.InMemory,
		MaxLimit: cfg.Store.MaxLimit,
	})
	if err != nil {
		logging.Fatalf("Failed to open event store: %v", err)
	}

	backend, err := cache.NewBackend(cache.Options{
		Backend:    cfg.Cache.Backend,
		RedisURL:   cfg.Cache.RedisURL,
		Prefix:     cfg.Cache.Prefix,
		MaxEntries: cfg.Cache.MaxEntries,
	})
	if err != nil {
		store.Close()
		logging.Fatalf("Failed to initialize dedupe cache: %v", err)
	}
	dedupe := cache.NewDedupe(backend, config.DuplicateTTL(cfg), config.AcceptedTTL(cfg))

	m := metrics.New("gatekeeper")

	engine := relay.New(relay.Options{
		Policy:  policy,
		Store:   store,
		Dedupe:  dedupe,
		Metrics: m,
		Logger:  logging.GetLogger(),
	})

	server := ws.BuildServer(ws.Options{
		Engine:        engine,
		Info:          ws.GetRelayInfo(cfg, policy),
		Metrics:       m,
		ExposeMetrics: cfg.Server.Metrics,
		Logger:        logging.GetLogger(),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.Port)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Listen(addr)
	}()

	// Handle kill signals
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logging.Infof("Received %s, shutting down", sig)
	case err := <-serveErr:
		if err != nil {
			logging.Errorf("Web server stopped: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = multierr.Combine(
		server.Shutdown(ctx),
		dedupe.Close(),
		store.Close(),
	)
	if err != nil {
		logging.Errorf("Error during shutdown: %v", err)
		os.Exit(1)
	}

	logging.Info("Relay stopped")
}
