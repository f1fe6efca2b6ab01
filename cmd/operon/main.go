// Package main is the entry point for the operon CLI: a local code
// intelligence agent that indexes a repository and drives a guarded,
// multi-phase edit loop under mandatory human approval.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/qasimio/Operon/internal/obslog"
	"github.com/qasimio/Operon/internal/opconfig"
)

var (
	repoRoot string
	logger   *zap.Logger
)

func main() {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = ""
	built, err := cfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init failed:", err)
		os.Exit(1)
	}
	logger = built
	defer logger.Sync()

	if repoRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			logger.Fatal("resolve working directory", zap.Error(err))
		}
		repoRoot = wd
	}

	opCfg, err := opconfig.Load(repoRoot)
	if err != nil {
		logger.Warn("failed to load config, using defaults", zap.Error(err))
		opCfg = opconfig.Default()
	}
	obslog.Configure(repoRoot, opCfg.Debug)
	defer obslog.CloseAll()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
