// FILE: main.go
// Package main – Program entrypoint for the backtest daemon.
//
// Boot sequence (mirrors the teacher's main.go):
//   1) parse flags
//   2) loadConfigFromEnv()     – flag > env > default
//   3) wire a PriceProvider (CSV, optionally SQLite-cached)
//   4) start Prometheus /healthz + /metrics server on cfg.Port
//   5) run backtest.Run once and print the Summary
//
// This is not the named-portfolio CLI front-end a full product would have;
// it runs one backtest from flags and prints the result, the way the
// teacher's main.go -backtest flag drives a single CSV replay.
//
// Example:
//   go run . -data-dir ./data -allocations VOO:0.6,CASH:0.4 -algo sd-9.05,50
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quantlab/synthdiv/backtest"
	"github.com/quantlab/synthdiv/btmetrics"
	"github.com/quantlab/synthdiv/priceprovider"
	"github.com/quantlab/synthdiv/tradealgo"
)

func main() {
	var dataDir, cacheDB, allocStr, algoSpec, startStr, endStr string
	flag.StringVar(&dataDir, "data-dir", "", "Directory of per-ticker CSV files (default $DATA_DIR or ./data)")
	flag.StringVar(&cacheDB, "cache-db", "", "Optional SQLite path caching GetPrices/GetDividends calls")
	flag.StringVar(&allocStr, "allocations", "", "TICKER:weight,... e.g. VOO:0.6,CASH:0.4 (default $ALLOCATIONS)")
	flag.StringVar(&algoSpec, "algo", "", "Algorithm specifier, e.g. sd-9.05,50 (default $ALGO_SPEC)")
	flag.StringVar(&startStr, "start", "", "Start date YYYY-MM-DD (default $START_DATE)")
	flag.StringVar(&endStr, "end", "", "End date YYYY-MM-DD (default $END_DATE)")
	flag.Parse()

	cfg, err := loadConfigFromEnv(dataDir, cacheDB, allocStr, algoSpec, startStr, endStr)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	spec, err := tradealgo.ParseSpec(cfg.AlgoSpec)
	if err != nil {
		log.Fatalf("algorithm spec: %v", err)
	}

	var provider priceprovider.Provider = priceprovider.NewCSVProvider(cfg.DataDir)
	if cfg.CacheDB != "" {
		cached, err := priceprovider.NewSQLiteCache(cfg.CacheDB, provider)
		if err != nil {
			log.Fatalf("sqlite cache: %v", err)
		}
		provider = cached
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	recorder, err := btmetrics.NewRecorder(registry, "backtestd")
	if err != nil {
		log.Fatalf("metrics: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: mux}
	go func() {
		log.Printf("serving metrics on :%d/metrics", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := backtest.Options{
		Allocations:             cfg.Allocations,
		StartDate:               cfg.StartDate,
		EndDate:                 cfg.EndDate,
		Spec:                    spec,
		InitialInvestment:       cfg.InitialInvestment,
		AllowMargin:             cfg.AllowMargin,
		WithdrawalRatePct:       cfg.WithdrawalRatePct,
		WithdrawalFrequencyDays: cfg.WithdrawalFrequencyDays,
		CashInterestRatePct:     cfg.CashInterestRatePct,
		Provider:                provider,
		Recorder:                recorder,
	}

	txns, summary, err := backtest.Run(ctx, opts)
	if err != nil {
		log.Fatalf("backtest run: %v", err)
	}
	log.Printf("ran %d transactions across %d tickers", len(txns), len(cfg.Allocations))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		log.Fatalf("encode summary: %v", err)
	}

	shutdownCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
	defer c()
	_ = srv.Shutdown(shutdownCtx)
}
