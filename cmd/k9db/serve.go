package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/k9db/k9db/internal/dbctx"
)

var serveCmd = &cobra.Command{
	Use:   "serve <database>",
	Short: "open a database and hold its lock until interrupted",
	Long: `serve opens <database> under --data-dir, replaying its catalog, and
blocks until SIGINT/SIGTERM. It exists for long-lived processes (a
background compaction job, a supervised daemon) that need the directory
lock held without a shell attached; ad hoc queries should use the shell
subcommand instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := dbctx.Open(rootCtx, dataDir, args[0])
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		defer db.Close()

		db.Log.Info("serving", "data_dir", dataDir)
		<-rootCtx.Done()
		db.Log.Info("shutting down")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
