package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is stamped by the release build
var version = "dev"

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "batchctl",
		Short: "batchctl - batch generative media mission client",
		Long: `batchctl submits batches of generative media jobs to an execution
backend and tracks them to completion. Prompt lists and image batches are
expanded client-side into individual jobs, submitted as one mission, and
polled until the mission reaches a terminal state.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
