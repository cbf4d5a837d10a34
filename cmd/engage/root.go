package main

import (
	"context"
	"os"

	"github.com/sandevgo/engage/internal/config"
	"github.com/sandevgo/engage/pkg/log"
	"github.com/spf13/cobra"
)

var (
	debug bool
)

var rootCmd = &cobra.Command{
	Use:   "engage",
	Short: "Engage — in-app engagement SDK simulator",
	Long:  `Runs the engagement extension locally: ingests decision payloads, renders in-app messages to the console, and exposes an HTTP surface for driving events by hand.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags available to all subcommands
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", config.IsDebug(), "enable debug logging")
}

func setupLogger(ctx context.Context) (context.Context, func()) {
	isDebug := debug || config.IsDebug()
	return log.NewContextWithLogger(ctx, isDebug)
}
