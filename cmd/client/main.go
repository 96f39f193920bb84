package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/defistate/cpamm-go/engine"
	"github.com/defistate/cpamm-go/protocols/constantproduct"
	"github.com/defistate/cpamm-go/protocols/constantproduct/indexer"
	"github.com/defistate/cpamm-go/streams/jsonrpc/client"
	"github.com/defistate/cpamm-go/streams/jsonrpc/stateops"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultClientStateBufferSize = 100
)

func main() {
	// create the log handler
	rootLogHandler := slog.NewJSONHandler(os.Stdout, nil)
	close := func() {
		os.Exit(1)
	}

	rootLogger := slog.New(rootLogHandler)
	prometheusRegistry := prometheus.DefaultRegisterer
	url := loadURL()

	// Create a context that cancels when the OS sends an interrupt (Ctrl+C) or termination signal.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stateOps, err := stateops.NewStateOps(rootLogger, prometheusRegistry)
	if err != nil {
		rootLogger.Error("Failed to initialize State Ops", "error", err)
		close()
	}

	client, err := client.NewClient(
		ctx,
		client.Config{
			URL:              url,
			Logger:           rootLogger.With("component", "jsonrpc-client"),
			BufferSize:       DefaultClientStateBufferSize,
			StatePatcher:     stateOps.Patch,
			StateDecoder:     stateOps.DecodeStateJSON,
			StateDiffDecoder: stateOps.DecodeStateDiffJSON,
		},
	)
	if err != nil {
		rootLogger.Error("Failed to initialize Client", "url", url, "error", err)
		close()
	}

	poolIndexer := indexer.New()
	for {
		select {
		case state := <-client.State():
			logState(rootLogger, poolIndexer, state)
		case err := <-client.Err():
			rootLogger.Error("Fatal client error", "error", err)
			return
		case <-ctx.Done():
			return
		}
	}
}

func logState(logger *slog.Logger, poolIndexer *indexer.Indexer, state *engine.State) {
	protocol, ok := state.Protocols[constantproduct.ProtocolID]
	if !ok {
		logger.Warn("state has no constant-product pools", "sequence", state.Sequence)
		return
	}
	if protocol.Error != "" {
		logger.Warn("protocol error", "sequence", state.Sequence, "error", protocol.Error)
		return
	}
	views, ok := protocol.Data.([]constantproduct.PoolView)
	if !ok {
		logger.Error("unexpected pool data", "sequence", state.Sequence, "type", fmt.Sprintf("%T", protocol.Data))
		return
	}

	indexed := poolIndexer.Index(views)
	logger.Info("state", "sequence", state.Sequence, "pools", len(indexed.All()))
	for _, pool := range indexed.All() {
		logger.Debug("pool",
			"id", pool.ID,
			"address", pool.Address,
			"identifier", constantproduct.Identifier(pool.SwapFeeBps),
			"reserve_a", pool.ReserveA,
			"reserve_b", pool.ReserveB,
			"total_supply", pool.TotalSupply,
		)
	}
}

func loadURL() string {
	_ = godotenv.Load()
	defaultURL := os.Getenv("POOLD_STREAM_URL")
	if defaultURL == "" {
		defaultURL = "ws://localhost:8545/ws"
	}
	url := flag.String("url", defaultURL, "Websocket URL of the pool daemon.")
	flag.Parse()
	return *url
}
