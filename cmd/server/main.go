package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/arbz/zeroday-engine/internal/api"
	"github.com/arbz/zeroday-engine/internal/config"
	"github.com/arbz/zeroday-engine/internal/events"
	"github.com/arbz/zeroday-engine/internal/oracle"
	"github.com/arbz/zeroday-engine/internal/settle"
	"github.com/arbz/zeroday-engine/internal/state"
	"github.com/arbz/zeroday-engine/internal/venue"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cleanup []func()
	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- State store ---
	var st state.Store
	if cfg.Store.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.Store.PostgresURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)

		pg := state.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			slog.Error("database migration failed", "err", err)
			os.Exit(1)
		}
		st = pg
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.Store.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.Store.RedisURL)
			if err != nil {
				slog.Error("invalid redis url", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = state.NewCachedStore(st, rdb, cfg.Store.CacheTTL)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("no database configured, using in-memory store (state will not persist)")
		st = state.NewMemoryStore()
	}

	// --- Audit event sinks ---
	recent := events.NewMemoryLog(4096)
	hub := api.NewHub()
	go hub.Run()

	sinks := events.Tee{recent, hub}
	if len(cfg.Kafka.Brokers) > 0 {
		kl := events.NewKafkaLog(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		cleanup = append(cleanup, func() { kl.Close() })
		sinks = append(sinks, kl)
		slog.Info("Kafka audit sink enabled", "topic", cfg.Kafka.Topic)
	}

	// --- Settlement propagator ---
	var prop settle.Propagator
	ethCfg := settle.EthConfig{
		RPCURL:          cfg.Chain.RPCURL,
		ContractAddress: cfg.Chain.ContractAddress,
		PrivateKey:      cfg.Chain.PrivateKey,
		ChainID:         cfg.Chain.ChainID,
	}
	if ethCfg.Configured() {
		eth, err := settle.DialEth(ctx, ethCfg)
		if err != nil {
			slog.Error("settlement chain connection failed", "err", err)
			os.Exit(1)
		}
		prop = eth
		slog.Info("authoritative settlement enabled", "contract", cfg.Chain.ContractAddress)
	} else {
		prop = settle.NewLocalSequencer()
		slog.Warn("no settlement chain configured, running local-only with namespaced ids")
	}

	// --- Oracle feed ---
	feed := oracle.NewFeed(decimal.NewFromInt(cfg.Oracle.StartPrice))
	if cfg.Oracle.Simulate {
		sim := oracle.NewSimulator()
		go sim.Run(ctx, feed)
		slog.Info("oracle simulator started", "start_price", cfg.Oracle.StartPrice)
	}

	// --- Venue ---
	vcfg := venue.Config{
		Operator:   cfg.Engine.OperatorToken,
		DefaultTTL: cfg.Engine.DefaultOrderTTLSecs,
	}
	if cfg.Engine.MakerFeeBps >= 0 && cfg.Engine.TakerFeeBps >= 0 {
		maker := decimal.NewFromInt(cfg.Engine.MakerFeeBps)
		taker := decimal.NewFromInt(cfg.Engine.TakerFeeBps)
		vcfg.MakerFeeBps, vcfg.TakerFeeBps = &maker, &taker
	}
	v := venue.New(vcfg, st, feed, prop, sinks)

	sweeper := &venue.Sweeper{Venue: v, Interval: cfg.Engine.SweepInterval}
	go sweeper.Run(ctx)

	// --- HTTP server ---
	svc := api.NewService(v, recent, hub)
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      svc.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("zeroday-engine listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	slog.Info("shutting down zeroday-engine...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("zeroday-engine stopped")
}
