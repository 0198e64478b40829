// Command backtest runs the signal engine over historical CSV bars and
// prints the performance report.
//
// Usage:
//
//	backtest -csv data/EURUSD.csv -instrument EURUSD [-config config.json] [-json]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/rs/zerolog"

	"smc-signal-engine/config"
	"smc-signal-engine/internal/backtest"
	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/smc"
)

func main() {
	csvPath := flag.String("csv", "", "path to the OHLCV CSV file (required)")
	instrument := flag.String("instrument", "", "instrument symbol (required)")
	configPath := flag.String("config", "", "config file (default config.json)")
	jsonOut := flag.Bool("json", false, "emit the full result as JSON instead of a report")
	verbose := flag.Bool("v", false, "log engine activity to stderr")
	flag.Parse()

	if *csvPath == "" || *instrument == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	bars, err := market.LoadCSV(*csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load bars: %v\n", err)
		os.Exit(1)
	}

	log := zerolog.Nop()
	if *verbose {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	table, err := cfg.SessionTable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sessions: %v\n", err)
		os.Exit(1)
	}

	engine := backtest.New(cfg.EngineConfig(), table, log)
	res, err := engine.Run(*instrument, bars)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backtest: %v\n", err)
		os.Exit(1)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			fmt.Fprintf(os.Stderr, "encode result: %v\n", err)
			os.Exit(1)
		}
		return
	}

	printReport(res, len(bars))
}

func printReport(res *backtest.Result, barCount int) {
	s := res.Summary

	fmt.Printf("Backtest: %s (%d bars)\n", res.Instrument, barCount)
	fmt.Println("----------------------------------------")
	fmt.Printf("Starting equity:  %12.2f\n", res.StartingEquity)
	fmt.Printf("Final equity:     %12.2f\n", res.FinalEquity)
	fmt.Printf("Net PnL:          %12.2f  (%.2f%%)\n", s.NetPnL, s.ROIPct)
	fmt.Println()
	fmt.Printf("Trades:           %6d\n", s.TotalTrades)
	fmt.Printf("Wins / Losses:    %6d / %d\n", s.Wins, s.Losses)
	fmt.Printf("Win rate:         %9.2f%%\n", s.WinRate*100)
	if math.IsInf(s.ProfitFactor, 1) {
		fmt.Printf("Profit factor:       inf (no losing trades)\n")
	} else {
		fmt.Printf("Profit factor:    %9.2f\n", s.ProfitFactor)
	}
	fmt.Printf("Avg win / loss:   %9.2f / %.2f\n", s.AvgWin, s.AvgLoss)
	fmt.Printf("Max drawdown:     %9.2f\n", s.MaxDrawdown)

	if len(s.ByKind) > 0 {
		fmt.Println()
		fmt.Println("By pattern kind:")
		kinds := make([]string, 0, len(s.ByKind))
		for k := range s.ByKind {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			ks := s.ByKind[smc.Kind(k)]
			fmt.Printf("  %-16s trades=%-4d wins=%-4d pnl=%.2f\n", k, ks.Trades, ks.Wins, ks.NetPnL)
		}
	}

	if len(res.Trades) > 0 {
		fmt.Println()
		fmt.Println("Trades:")
		for _, tr := range res.Trades {
			fmt.Printf("  %s  %-7s  entry %.5f  exit %.5f  %-7s  pnl %+.2f\n",
				tr.EntryTime.Format("2006-01-02 15:04"),
				tr.Direction, tr.EntryPrice, tr.ExitPrice, tr.Reason, tr.PnL)
		}
	}
}
