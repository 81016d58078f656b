// FilePath: internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/factoriot/hub/api"
	"github.com/factoriot/hub/internal/aggregator"
	"github.com/factoriot/hub/internal/config"
	"github.com/factoriot/hub/internal/database"
	"github.com/factoriot/hub/internal/ingest"
	"github.com/factoriot/hub/internal/monitoring"
	"github.com/factoriot/hub/internal/repository/postgres"
	"github.com/factoriot/hub/internal/service"
	"github.com/factoriot/hub/internal/transport/mqtt"
	"github.com/redis/go-redis/v9"
	nuts "github.com/vaudience/go-nuts"
)

// Server owns the HTTP listener, the MQTT transport and the background
// aggregator.
type Server struct {
	config     *config.Config
	srv        *http.Server
	aggregator *aggregator.Aggregator
	transport  *mqtt.Client
	monitoring *monitoring.Service

	aggCancel context.CancelFunc
	aggDone   sync.WaitGroup
}

// New creates a new server instance
func New(cfg *config.Config) *Server {
	return &Server{config: cfg}
}

// Start wires all components and begins serving. Blocks until shutdown.
func (s *Server) Start() error {
	db := initDB(s.config.Database.Postgres)

	events, err := postgres.NewEventRepository(db)
	if err != nil {
		return fmt.Errorf("failed to initialize event repository: %w", err)
	}
	stats, err := postgres.NewStatisticsRepository(db)
	if err != nil {
		return fmt.Errorf("failed to initialize statistics repository: %w", err)
	}

	svc := service.New(events, stats)
	if err := svc.Validate(); err != nil {
		return err
	}

	s.monitoring = monitoring.NewService(monitoring.Config{
		LogLevel: s.config.Monitoring.LogLevel,
	})

	// Aggregator is started once with its own context and joined at
	// shutdown; it must be the only active instance per store.
	aggOpts := []aggregator.Option{
		aggregator.WithCycleTimeout(s.config.Aggregation.CycleTimeout),
	}
	if s.config.Aggregation.LeaseEnabled {
		client := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", s.config.Redis.Host, s.config.Redis.Port),
			Password: s.config.Redis.Password,
			DB:       s.config.Redis.DB,
		})
		lease := aggregator.NewRedisLease(client, "hub:aggregation:lease", s.config.Aggregation.LeaseTTL)
		aggOpts = append(aggOpts, aggregator.WithLease(lease))
	}
	retention := time.Duration(s.config.Aggregation.RetentionDays) * 24 * time.Hour
	s.aggregator = aggregator.New(events, stats, s.config.Aggregation.Interval, retention, aggOpts...)
	s.setupAggregationHandlers()

	aggCtx, cancel := context.WithCancel(context.Background())
	s.aggCancel = cancel
	s.aggDone.Add(1)
	go func() {
		defer s.aggDone.Done()
		s.aggregator.Run(aggCtx)
	}()

	// MQTT transport feeding the ingest adapter
	adapter := ingest.New(events)
	s.transport = mqtt.NewClient(s.config.MQTT, adapter)
	if err := s.transport.Connect(); err != nil {
		nuts.L.Errorf("[Server] MQTT connect failed, ingest disabled: %v", err)
	}

	router := api.NewRouter(svc, s.aggregator, s.transport)
	s.srv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      router.Handler(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	go func() {
		nuts.L.Infof("[Server] Starting server on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			nuts.L.Errorf("[Server] Error starting server: %v", err)
			os.Exit(1)
		}
	}()

	return s.waitForShutdown()
}

// waitForShutdown waits for interrupt signal and gracefully shuts down
func (s *Server) waitForShutdown() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	nuts.L.Infof("[Server] Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}

	if s.transport != nil {
		s.transport.Disconnect()
	}

	// Join the aggregator; an in-flight cycle is bounded by its timeout
	s.aggCancel()
	s.aggDone.Wait()

	nuts.L.Infof("[Server] Server shut down successfully")
	return nil
}

func (s *Server) setupAggregationHandlers() {
	s.aggregator.OnCycle("cycle.completed", func(args ...interface{}) {
		s.monitoring.RecordEvent("aggregation_cycle_completed", nil)
	})
	s.aggregator.OnCycle("cycle.failed", func(args ...interface{}) {
		s.monitoring.RecordEvent("aggregation_cycle_failed", nil)
	})
}

func initDB(cfg config.PostgresConfig) database.DB {
	wrappedDB, err := database.NewPostgresDB(cfg)
	if err != nil {
		nuts.L.Fatalf("[Server] Failed to connect to PostgreSQL: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wrappedDB.Ping(ctx); err != nil {
		nuts.L.Fatalf("[Server] Failed to ping database: %v", err)
	}
	return wrappedDB
}
