package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"osrsprices/internal/config"
	"osrsprices/internal/httpx"
	"osrsprices/internal/logging"
	"osrsprices/internal/provider"
	"osrsprices/internal/provider/ratelimit"
	"osrsprices/internal/provider/wiki"
)

func main() {
	var item string
	var timestep string
	var out string
	var timeout int
	var configPath string

	flag.StringVar(&item, "item", getenv("ITEM", "Oathplate chest"), "item name or numeric id")
	flag.StringVar(&timestep, "timestep", getenv("TIMESTEP", "1h"), "timeseries interval (5m, 1h, 6h, 24h)")
	flag.StringVar(&out, "out", "", "also write to this file; .csv writes the raw timeseries, anything else the JSON report")
	flag.IntVar(&timeout, "timeout", 120, "overall timeout seconds")
	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.yaml (optional)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		logrus.Fatalf("logging: %v", err)
	}
	cli := logging.WithComponent(log, "fetch")

	step, err := provider.ParseTimestep(timestep)
	if err != nil {
		cli.WithError(err).Fatal("bad -timestep")
	}

	httpClient := httpx.New(cfg.Wiki.Timeout())
	httpClient.UserAgent = cfg.Wiki.UserAgent
	client, err := wiki.NewClient(
		wiki.WithBaseURL(cfg.Wiki.BaseURL),
		wiki.WithHTTPClient(httpClient),
		wiki.WithUserAgent(cfg.Wiki.UserAgent),
		wiki.WithGate(ratelimit.NewGate(cfg.Wiki.MaxRPS)),
		wiki.WithRetry(cfg.Wiki.MaxRetries, cfg.Wiki.BaseBackoff()),
		wiki.WithLogger(log),
	)
	if err != nil {
		cli.WithError(err).Fatal("wiki client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	r, err := buildReport(ctx, client, item, step)
	if err != nil {
		cli.WithError(err).Fatal("fetch failed")
	}
	cli.WithFields(logrus.Fields{
		"id":     r.Item.ID,
		"name":   r.Item.Name,
		"points": r.Points,
	}).Info("item fetched")

	if err := writeJSONReport(os.Stdout, r); err != nil {
		cli.WithError(err).Fatal("write report")
	}
	if out == "" {
		return
	}

	f, err := os.Create(out)
	if err != nil {
		cli.WithError(err).Fatal("create output")
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(out), ".csv") {
		err = writeCSV(f, r.Timeseries)
	} else {
		err = writeJSONReport(f, r)
	}
	if err != nil {
		cli.WithError(err).Fatal("write output")
	}
	cli.WithField("path", out).Info("output written")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
