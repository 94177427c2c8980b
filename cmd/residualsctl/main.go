// Command residualsctl is the operator CLI for the residuals server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalOptions struct {
	server string
	token  string
	json   bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	rootCmd := &cobra.Command{
		Use:           "residualsctl",
		Short:         "Operate the residuals server: ledger sync, orphans and tokens",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.server, "server", envOr("RESIDUALS_SERVER", "http://localhost:8080"), "Server base URL")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("RESIDUALS_TOKEN"), "Operator bearer token")
	rootCmd.PersistentFlags().BoolVarP(&opts.json, "json", "j", false, "Output as JSON")

	rootCmd.AddCommand(syncCmd(opts))
	rootCmd.AddCommand(orphansCmd(opts))
	rootCmd.AddCommand(tokenCmd())
	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
