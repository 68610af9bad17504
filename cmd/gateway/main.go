// cmd/gateway/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "job-worker/internal/api/http"
	"job-worker/internal/config"
	"job-worker/internal/domain"
	"job-worker/internal/gateway"
	"job-worker/internal/infra/analysis"
	"job-worker/internal/infra/etcd"
	"job-worker/internal/infra/imagegen"
	"job-worker/internal/logging"
	"job-worker/internal/tracing"
	"job-worker/internal/usecase"

	"github.com/spf13/cobra"
)

func main() {
	var configFile string
	cmd := &cobra.Command{
		Use:           "gateway",
		Short:         "Run the API gateway that validates jobs and forwards them to workers",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configFile)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "path to config file (default: configs/config.yaml or ./config.yaml)")

	if err := cmd.Execute(); err != nil {
		log.Fatalf("gateway: %v", err)
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
		tracerShutdown, err := tracing.InitTracer("job-worker-gateway", os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}
		defer func() {
			if err := tracerShutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}
	logger.Info("starting gateway", "listen", cfg.GatewayListenAddr, "transport", cfg.WorkerTransport)

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupGracefulShutdown(cancel, logger)

	// 2. Worker discovery, optional
	var source domain.WorkerSource
	if cfg.DiscoveryEnabled() {
		etcdClient, err := etcd.NewClient(cfg.EtcdEndpoints, cfg.EtcdTimeout)
		if err != nil {
			return err
		}
		defer etcdClient.Close()

		discovery := gateway.NewWorkerDiscovery(etcdClient, logger)
		go discovery.WatchWorkers(rootCtx)
		source = discovery
	}

	// 3. Forwarder and the registry used for up-front validation
	forwarder, err := gateway.NewForwarder(gateway.ForwarderConfig{
		Transport: cfg.WorkerTransport,
		Fallback: domain.WorkerEndpoint{
			ID:       "static",
			HTTPURL:  cfg.WorkerURL,
			GRPCAddr: cfg.WorkerGRPCAddr,
		},
		Timeout: cfg.ForwardTimeout,
		Retry: gateway.RetryPolicy{
			MaxRetries: cfg.ForwardMaxRetries,
			Backoff:    cfg.ForwardBackoff,
		},
	}, source, logger)
	if err != nil {
		return err
	}
	defer forwarder.Close()

	registry, err := usecase.NewDispatchService(logger,
		analysis.NewAnalyzeDataHandler(logger),
		imagegen.NewGenerateImageHandler(logger),
	)
	if err != nil {
		return err
	}

	// 4. HTTP server
	router := httpapi.NewGatewayRouter(
		httpapi.NewGatewayHandler(registry, forwarder, logger),
		httpapi.NewHealthHandler(cfg.Environment),
		httpapi.GatewayOptions{
			AllowedOrigins: cfg.CorsOrigins,
			RateLimit:      cfg.GatewayRateLimit,
			RateBurst:      cfg.GatewayRateBurst,
		},
	)
	server := &http.Server{
		Addr:              cfg.GatewayListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	select {
	case <-rootCtx.Done():
	case err := <-errCh:
		return err
	}
	logger.Info("shutting down gateway gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}

	logger.Info("gateway shut down")
	return nil
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
