// Package main provides erpflow, the operator CLI for the ERP invoice pipeline.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Lllllllleong/erpdocumentflow/internal/config"
	"github.com/Lllllllleong/erpdocumentflow/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "erpflow",
	Short: "Operator tools for the ERP invoice pipeline",
	Long:  "erpflow renders invoice archives locally, inspects the stage buckets and decodes job-tagged object names.",
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.Init(config.LoadLog())
	},
	SilenceUsage: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
