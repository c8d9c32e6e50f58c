// Command coleta extracts product listings from the marketplace and
// writes them as JSON to stdout.
//
// Usage:
//
//	coleta -term "fone de ouvido bluetooth"     # search by term
//	coleta -category celulares -pages 2         # walk a category
//	coleta -deals                               # today's promotions
//	coleta -stats                               # cache and learning stats
//	coleta -history MLB123456789                # price history for a product
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Lucaascf/coleta-produtos/coleta"
)

func main() {
	configPath := flag.String("config", "", "path to coleta.yaml config file")
	term := flag.String("term", "", "search term")
	category := flag.String("category", "", "category name or site code")
	deals := flag.Bool("deals", false, "extract the deals page")
	pages := flag.Int("pages", 0, "max pages to walk (0 = config default)")
	limit := flag.Int("limit", 0, "max products to return (0 = no cap)")
	stats := flag.Bool("stats", false, "print cache and selector stats, then exit")
	history := flag.String("history", "", "print price history for a product ID, then exit")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *term, *category, *deals, *pages, *limit, *stats, *history); err != nil {
		logger.Error("coleta: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, term, category string, deals bool, pages, limit int, stats bool, history string) error {
	var cfg *coleta.Config
	if configPath != "" {
		loaded, err := coleta.LoadFile(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	svc, err := coleta.New(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	// Stats and history only read the database; skip the browser.
	if stats {
		st, err := svc.Stats(ctx)
		if err != nil {
			return err
		}
		return printJSON(st)
	}
	if history != "" {
		records, err := svc.PriceHistory(ctx, history, 50)
		if err != nil {
			return err
		}
		return printJSON(records)
	}

	q, err := buildQuery(term, category, deals, pages, limit)
	if err != nil {
		return err
	}

	if err := svc.Start(ctx); err != nil {
		return err
	}

	res, err := svc.Search(ctx, q)
	if err != nil {
		// Exhaustion still yields the pages that worked.
		if res == nil || len(res.Products) == 0 {
			return err
		}
		logger.Warn("coleta: partial result", "error", err, "products", len(res.Products))
	}
	return printJSON(res.Products)
}

func buildQuery(term, category string, deals bool, pages, limit int) (coleta.Query, error) {
	q := coleta.Query{MaxPages: pages, MaxResults: limit}
	switch {
	case deals:
		q.Mode = coleta.ModeDeals
	case category != "":
		q.Mode = coleta.ModeCategory
		q.Category = category
	case term != "":
		q.Mode = coleta.ModeTerm
		q.Term = term
	default:
		fmt.Fprintln(os.Stderr, "usage: coleta -term <text> | -category <name> | -deals | -stats | -history <id>")
		os.Exit(1)
	}
	return q, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
