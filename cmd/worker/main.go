// cmd/worker/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "job-worker/internal/api/http"
	"job-worker/internal/config"
	"job-worker/internal/domain"
	"job-worker/internal/infra/analysis"
	"job-worker/internal/infra/etcd"
	httpinfra "job-worker/internal/infra/http"
	"job-worker/internal/infra/imagegen"
	"job-worker/internal/logging"
	"job-worker/internal/rpc"
	"job-worker/internal/scheduler"
	"job-worker/internal/tracing"
	"job-worker/internal/usecase"
	"job-worker/internal/worker"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

func main() {
	var configFile string
	cmd := &cobra.Command{
		Use:           "worker",
		Short:         "Run the job worker: job API, gRPC dispatch and API heartbeat",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configFile)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "path to config file (default: configs/config.yaml or ./config.yaml)")

	if err := cmd.Execute(); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

func run(configFile string) error {
	// 1. Config, logger, tracer
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel)

	if cfg.TracingEnabled {
		tracerShutdown, err := tracing.InitTracer("job-worker", os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}
		defer func() {
			if err := tracerShutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}

	workerID := uuid.NewString()
	logger = logger.With("worker_id", workerID)
	logger.Info("starting worker node", "http_addr", cfg.HttpListenAddr, "grpc_addr", cfg.GrpcListenAddr)

	// 2. Root context for lifecycle management
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupGracefulShutdown(cancel, logger)

	// 3. Job handlers and dispatcher
	dispatcher, err := usecase.NewDispatchService(logger,
		analysis.NewAnalyzeDataHandler(logger),
		imagegen.NewGenerateImageHandler(logger),
	)
	if err != nil {
		return err
	}

	// 4. HTTP API
	router := httpapi.NewWorkerRouter(
		httpapi.NewJobHandler(dispatcher, logger),
		httpapi.NewHealthHandler(cfg.Environment),
	)
	server := &http.Server{
		Addr:              cfg.HttpListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 2)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	// 5. gRPC API
	var grpcServer *grpc.Server
	if cfg.GrpcListenAddr != "" {
		lis, err := net.Listen("tcp", cfg.GrpcListenAddr)
		if err != nil {
			return fmt.Errorf("failed to listen for gRPC: %w", err)
		}
		grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
		rpc.RegisterWorkerServer(grpcServer, worker.NewServer(dispatcher, workerID, logger))
		go func() {
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- fmt.Errorf("gRPC server failed: %w", err)
			}
		}()
	}

	// 6. Heartbeat against the API host
	prober := httpinfra.NewHealthProber(cfg.ApiHost, cfg.HeartbeatTimeout, logger)
	heartbeat, err := scheduler.NewHeartbeatScheduler(prober, cfg.HeartbeatInterval, logger)
	if err != nil {
		return err
	}
	go func() {
		_ = heartbeat.Start(rootCtx)
	}()

	// 7. Optional registration for gateway discovery
	if cfg.DiscoveryEnabled() {
		deregister, err := register(rootCtx, cfg, workerID, logger)
		if err != nil {
			return err
		}
		defer deregister()
	}

	// 8. Block until shutdown or a server failure
	select {
	case <-rootCtx.Done():
	case err := <-errCh:
		cancel()
		return err
	}
	logger.Info("shutting down worker node gracefully")

	heartbeat.Stop()
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}

	logger.Info("worker node shut down")
	return nil
}

func register(ctx context.Context, cfg *config.Config, workerID string, logger *slog.Logger) (func(), error) {
	etcdClient, err := etcd.NewClient(cfg.EtcdEndpoints, cfg.EtcdTimeout)
	if err != nil {
		return nil, err
	}

	registry := worker.NewRegistry(etcdClient, logger)
	regCtx, regCancel := context.WithTimeout(ctx, cfg.EtcdTimeout)
	defer regCancel()
	endpoint := domain.WorkerEndpoint{
		ID:       workerID,
		HTTPURL:  cfg.AdvertiseHTTPURL,
		GRPCAddr: cfg.AdvertiseGRPCAddr,
	}
	if err := registry.Register(regCtx, endpoint, int64(cfg.RegistrationTTL.Seconds())); err != nil {
		etcdClient.Close()
		return nil, fmt.Errorf("failed to register worker: %w", err)
	}

	return func() {
		deregCtx, deregCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer deregCancel()
		if err := registry.Deregister(deregCtx); err != nil {
			logger.Error("failed to deregister worker", "error", err)
		}
		etcdClient.Close()
	}, nil
}

func setupGracefulShutdown(cancel context.CancelFunc, logger *slog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, initiating graceful shutdown", "signal", sig.String())
		cancel()
	}()
}
