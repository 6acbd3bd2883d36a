package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wellness-payments",
	Short: "Wellness payments service",
	Long:  "Payment reconciliation and subscription activation for the wellness app, backed by MercadoPago.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
