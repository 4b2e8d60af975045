package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"afropedia/api/internal/config"
)

var rootCmd = &cobra.Command{
	Use:          "afropedia-api",
	Short:        "Afropedia revision review engine",
	SilenceUsage: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd.AddCommand(serveCmd(), migrateCmd(), tokenCmd())
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the environment once per command invocation.
func loadConfig() config.Config {
	return config.Load()
}
