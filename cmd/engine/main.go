package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"solhop/pkg"
	"solhop/pkg/config"
	"solhop/pkg/engine"
	"solhop/pkg/pod"
	"solhop/pkg/quotesvc"
	"solhop/pkg/sol"
	"solhop/pkg/subscription"
)

var (
	mode          = flag.String("mode", "narrow-path", "Strategy mode: narrow-path or scan-only")
	execMode      = flag.String("exec", "paper", "Execution mode: paper, ghost, live or disabled")
	anchor        = flag.String("anchor", pkg.WSOL, "Anchor mint cycles start and end at")
	minHops       = flag.Int("min-hops", 2, "Minimum cycle length")
	maxHops       = flag.Int("max-hops", 4, "Maximum cycle length (capped at 5)")
	minLiquidity  = flag.Uint64("min-liquidity", 10000, "Minimum pool liquidity in USD")
	minProfit     = flag.Float64("min-profit", 0.5, "Base profit threshold in percent")
	maxSlotAge    = flag.Uint64("max-slot-age", 150, "Exclude edges older than this many slots (0 disables)")
	whale         = flag.Float64("whale-threshold", 250000, "Bridge whale threshold in USD")
	watchlist     = flag.String("pools", "", "Path to the pool watchlist JSON (feed disabled if empty)")
	port          = flag.Int("port", 8080, "HTTP server port")
	rpcEndpoints  = flag.String("rpc", "", "Comma-separated Solana RPC endpoints (uses RPC_ENDPOINTS if empty)")
	rateLimit     = flag.Int("ratelimit", 20, "RPC requests per second per endpoint")
	quoteRate     = flag.Int("quote-ratelimit", 20, "Quote service requests per second")
	slippageBps   = flag.Int("slippage", 50, "Slippage tolerance in basis points")
	drainInterval = flag.Duration("drain-interval", 500*time.Millisecond, "Signal queue drain cadence")
	debug         = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	if err := config.LoadEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load .env file: %v\n", err)
	}
	flag.Parse()

	log := buildLogger(*debug)
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	endpoints := parseEndpoints(*rpcEndpoints)
	if len(endpoints) == 0 {
		endpoints = config.GetRPCEndpoints()
	}
	if len(endpoints) == 0 {
		log.Fatal("no RPC endpoints configured, set RPC_ENDPOINTS or use -rpc")
	}

	rpcPool, err := sol.NewRPCPool(ctx, endpoints, *rateLimit)
	if err != nil {
		log.Fatal("rpc pool", zap.Error(err))
	}
	log.Info("rpc pool ready", zap.Int("endpoints", rpcPool.Size()))

	quotes := quotesvc.New(config.GetQuoteServiceURL(), *quoteRate, *slippageBps)

	deps := engine.Deps{
		Quotes:     quotes,
		Legs:       quotes,
		Congestion: sol.NewFeeSource(rpcPool),
		Log:        log,
		Registry:   prometheus.DefaultRegisterer,
	}
	if pod.Mode(*execMode) == pod.ModeLive {
		relay, err := sol.NewJitoRelay(config.GetJitoURL(), rpcPool, config.GetSignerKey())
		if err != nil {
			log.Fatal("jito relay", zap.Error(err))
		}
		deps.Relay = relay
		deps.Signer = relay.Signer()
	}

	eng, err := engine.New(engine.Config{
		Mode: pod.StrategyMode(*mode),
		Strategy: pod.StrategyConfig{
			Anchor:            *anchor,
			MinHops:           *minHops,
			MaxHops:           *maxHops,
			MinLiquidityUSD:   *minLiquidity,
			MinProfitPct:      *minProfit,
			MaxSlotAge:        *maxSlotAge,
			WhaleThresholdUSD: *whale,
			Execution: pod.ExecutionConfig{
				Mode:         pod.Mode(*execMode),
				MinProfitPct: *minProfit,
			},
		},
		DrainInterval: *drainInterval,
	}, deps)
	if err != nil {
		log.Fatal("build engine", zap.Error(err))
	}

	eng.RegisterSink(func(s pod.Signal) {
		if s.Priority < 8 {
			return
		}
		log.Info("signal",
			zap.String("pod", s.PodID),
			zap.String("type", string(s.Type)),
			zap.Int("priority", s.Priority))
	})

	if *watchlist != "" {
		pools, err := subscription.LoadWatchlist(*watchlist)
		if err != nil {
			log.Fatal("watchlist", zap.Error(err))
		}
		feed, err := subscription.NewFeed(ctx, config.GetWSEndpoint(), eng.Graph(), log)
		if err != nil {
			log.Fatal("account feed", zap.Error(err))
		}
		defer feed.Close()
		if err := feed.TrackAll(pools); err != nil {
			log.Fatal("track pools", zap.Error(err))
		}
		log.Info("account feed tracking", zap.Int("pools", len(pools)))
	} else {
		log.Warn("no watchlist given, graph will stay empty")
	}

	server := buildHTTPServer(*port, eng)
	go func() {
		log.Info("http server listening", zap.Int("port", *port))
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("server shutdown", zap.Error(err))
		}
		cancel()
	}()

	if err := eng.Run(ctx); err != nil && err != context.Canceled {
		log.Fatal("engine", zap.Error(err))
	}
}

func buildLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	log, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	return log
}

func parseEndpoints(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func buildHTTPServer(port int, eng *engine.Engine) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status": "healthy",
			"paused": eng.Market().ShouldPauseTrading(),
		})
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(eng.Stats())
	})
	mux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: corsMiddleware(mux),
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
