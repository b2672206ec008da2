package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/kestrelcv/kestrel/internal/app"
	"github.com/kestrelcv/kestrel/internal/conf"
)

// buildVersion is stamped via -ldflags at release build time.
var buildVersion = "dev"

func main() {
	confPath := flag.String("conf", "configs/config.toml", "config file path")
	flag.Parse()

	bc, err := conf.SetupConfig(*confPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	bc.BuildVersion = buildVersion

	level := slog.LevelInfo
	if bc.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	if err := app.Run(bc); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}
