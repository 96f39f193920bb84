package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/defistate/cpamm-go/api/rest"
	"github.com/defistate/cpamm-go/cmd/poold/config"
	"github.com/defistate/cpamm-go/deployer"
	"github.com/defistate/cpamm-go/ledger"
	"github.com/defistate/cpamm-go/protocols/constantproduct"
	"github.com/defistate/cpamm-go/streams/jsonrpc/server"
	"github.com/defistate/cpamm-go/streams/jsonrpc/stateops"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gofiber/fiber/v3"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	defaultPath := os.Getenv("POOLD_CONFIG")
	if defaultPath == "" {
		defaultPath = "config.yaml"
	}
	configPath := flag.String("config", defaultPath, "Path to the configuration file.")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	rootLogger := newLogger(cfg.LogLevel)
	slog.SetDefault(rootLogger)
	rootLogger.Info("configuration loaded", "path", *configPath, "pools", len(cfg.Pools))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prometheusRegistry := prometheus.DefaultRegisterer

	tokenLedger := ledger.NewMemory()
	for _, balance := range cfg.Genesis {
		token, owner, amount, err := balance.Parse()
		if err != nil {
			return err
		}
		if err := tokenLedger.Credit(token, owner, amount); err != nil {
			return fmt.Errorf("failed to credit genesis balance: %w", err)
		}
	}

	masterDeployer, err := deployer.New(&deployer.Config{
		Address:     common.HexToAddress(cfg.Deployer.Address),
		Owner:       common.HexToAddress(cfg.Deployer.Owner),
		BarFee:      cfg.Deployer.BarFee,
		BarFeeTo:    common.HexToAddress(cfg.Deployer.BarFeeTo),
		Ledger:      tokenLedger,
		Logger:      rootLogger.With("component", "deployer"),
		PoolOptions: []constantproduct.Option{constantproduct.WithMetrics(constantproduct.NewMetrics(prometheusRegistry))},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize deployer: %w", err)
	}
	for i, poolCfg := range cfg.Pools {
		data, err := poolCfg.DeployData()
		if err != nil {
			return fmt.Errorf("pools[%d]: %w", i, err)
		}
		if _, err := masterDeployer.DeployPool(data); err != nil {
			return fmt.Errorf("pools[%d]: %w", i, err)
		}
	}

	stateOps, err := stateops.NewStateOps(rootLogger.With("component", "stateops"), prometheusRegistry)
	if err != nil {
		return fmt.Errorf("failed to initialize state ops: %w", err)
	}
	service, err := server.New(&server.Config{
		Registry:   masterDeployer,
		Ledger:     tokenLedger,
		Fees:       masterDeployer,
		Differ:     stateOps,
		Logger:     rootLogger.With("component", "jsonrpc-server"),
		BufferSize: cfg.RPC.StreamBuffer,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize rpc service: %w", err)
	}

	rpcServer := rpc.NewServer()
	defer rpcServer.Stop()
	if err := service.Register(rpcServer); err != nil {
		return err
	}

	origins := cfg.RPC.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	rpcMux := http.NewServeMux()
	rpcMux.Handle(cfg.RPC.WebsocketRoute, rpcServer.WebsocketHandler(origins))
	rpcMux.Handle("/", rpcServer)
	rpcHTTP := &http.Server{Addr: cfg.RPC.Addr, Handler: rpcMux}

	errCh := make(chan error, 3)
	go func() {
		rootLogger.Info("json-rpc server listening", "addr", cfg.RPC.Addr, "ws", cfg.RPC.WebsocketRoute)
		if err := rpcHTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("rpc server: %w", err)
		}
	}()

	var metricsHTTP *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsHTTP = &http.Server{Addr: cfg.Metrics.Addr, Handler: metricsMux}
		go func() {
			rootLogger.Info("metrics server listening", "addr", cfg.Metrics.Addr, "path", cfg.Metrics.Path)
			if err := metricsHTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	var app *fiber.App
	if cfg.REST.Addr != "" {
		app = fiber.New()
		rest.NewHandler(rootLogger.With("component", "rest"), service).Register(app)
		go func() {
			if err := app.Listen(cfg.REST.Addr); err != nil {
				errCh <- fmt.Errorf("rest server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		rootLogger.Info("shutting down")
	case runErr = <-errCh:
		rootLogger.Error("server failed, shutting down", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := rpcHTTP.Shutdown(shutdownCtx); err != nil {
		rootLogger.Warn("rpc server shutdown", "error", err)
	}
	if metricsHTTP != nil {
		if err := metricsHTTP.Shutdown(shutdownCtx); err != nil {
			rootLogger.Warn("metrics server shutdown", "error", err)
		}
	}
	if app != nil {
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			rootLogger.Warn("rest server shutdown", "error", err)
		}
	}
	return runErr
}
