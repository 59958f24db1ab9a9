// Command k9db is the CLI entry point: a cobra root command wrapping three
// subcommands (serve, shell, explain) over one on-disk database directory.
// Grounded on cmd/bd/main.go's root-command shape: a package-level
// *cobra.Command with PersistentFlags for process-wide settings and a
// PersistentPreRun that wires up a signal-aware context before any
// subcommand body runs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	dataDir    string
	encryption bool

	rootCtx    context.Context
	rootCancel context.CancelFunc
)

var rootCmd = &cobra.Command{
	Use:   "k9db",
	Short: "k9db - a compliance-by-construction sharded SQL database",
	Long: `k9db shards every table's rows by the data subject that owns them and
enforces GDPR GET/FORGET as schema-declared plans rather than
application-level bookkeeping.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		if encryption {
			// config.Load reads K9DB_-prefixed env vars before defaults; this
			// lets --encryption on the command line win over an unset
			// config.yaml without config ever importing cobra.
			os.Setenv("K9DB_ENCRYPTION", "true")
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./k9db-data", "root directory holding one subdirectory per database")
	rootCmd.PersistentFlags().BoolVar(&encryption, "encryption", false, "enable at-rest AEAD encryption for newly created databases")
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintln(os.Stderr, "k9db: internal error:", r)
			os.Exit(1)
		}
	}()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
