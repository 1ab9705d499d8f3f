// Command turnsim runs bot-only rooms offline and issues API tokens.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/laby37200-cell/civilization-forge-sub000/internal/config"
	"github.com/laby37200-cell/civilization-forge-sub000/internal/logger"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "turnsim",
	Short: "Offline turn simulator for civilization-forge",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init()
		cfg = config.Load()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(tokenCmd)
}
