package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "checkout",
		Short:   "Run sessions checkouts against a checkout backend",
		Version: Version,
	}
	rootCmd.PersistentFlags().String("attempt", "", "Payment attempt id namespacing saved state (default: new id)")
	rootCmd.PersistentFlags().String("session-id", "", "Existing session id (default: create a sandbox session)")
	rootCmd.PersistentFlags().String("session-data", "", "sessionData of the existing session")
	rootCmd.PersistentFlags().Duration("timeout", defaultTimeout, "Maximum time to wait for the payment to finish")

	rootCmd.AddCommand(payCmd())
	rootCmd.AddCommand(detailsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
