// Command scan runs a single analysis pass over one symbol and prints
// the snapshot as JSON. Useful for inspecting detector output without
// the full service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"confluence-engine/config"
	"confluence-engine/internal/engine"
	"confluence-engine/internal/marketdata"
)

func main() {
	symbol := flag.String("symbol", "BTCUSDT", "symbol to analyze")
	timeframe := flag.String("timeframe", "", "candle timeframe, defaults to configuration")
	limit := flag.Int("limit", 0, "candles to fetch, defaults to configuration")
	mock := flag.Bool("mock", false, "use deterministic synthetic data")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	tf := cfg.MarketDataConfig.Timeframe
	if *timeframe != "" {
		tf = *timeframe
	}
	n := cfg.MarketDataConfig.CandleLimit
	if *limit > 0 {
		n = *limit
	}

	var fetcher marketdata.Fetcher
	if *mock || cfg.MarketDataConfig.MockMode {
		fetcher = marketdata.NewMockClient()
	} else {
		fetcher = marketdata.NewClient(cfg.MarketDataConfig.BaseURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := fetcher.Fetch(ctx, *symbol, tf, n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fetch %s: %v\n", *symbol, err)
		os.Exit(1)
	}

	eng := engine.New(engine.DefaultConfig())
	snap := eng.Analyze(s, engine.Account{
		Balance: cfg.AccountConfig.Balance,
		RiskPct: cfg.AccountConfig.RiskPct,
	})

	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal snapshot: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
