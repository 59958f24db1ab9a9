package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/k9db/k9db/internal/dbctx"
	"github.com/k9db/k9db/internal/shard"
)

var explainCmd = &cobra.Command{
	Use:   "explain <database>",
	Short: "print the sharding plan and compliance warnings for every table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := dbctx.Open(rootCtx, dataDir, args[0])
		if err != nil {
			return fmt.Errorf("explain: %w", err)
		}
		defer db.Close()
		explainCompliance(cmd.OutOrStdout(), db)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(explainCmd)
}

// explainCompliance prints one block per table: how its rows are sharded,
// every ownership/accessor chain reaching a data subject, and any warning
// worth a human's attention before they rely on FORGET to actually reach
// every copy of a row. This is EXPLAIN COMPLIANCE's implementation, shared
// between the one-shot explain subcommand and the shell's pragma of the
// same name.
func explainCompliance(w io.Writer, db *dbctx.Database) {
	names := make([]string, 0, len(db.Engine.Tables))
	for name := range db.Engine.Tables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if db.Engine.Graph.IsDataSubject(name) {
			fmt.Fprintf(w, "%s: data subject (own shard, keyed by its primary key)\n", name)
			continue
		}
		chains := db.Engine.Graph.ChainsFrom(name)
		if len(chains) == 0 {
			fmt.Fprintf(w, "%s: unsharded (lives entirely in the default shard)\n", name)
			continue
		}
		fmt.Fprintf(w, "%s:\n", name)
		for _, c := range chains {
			fmt.Fprintf(w, "  %s\n", formatChain(name, c))
		}
		for _, warn := range complianceWarnings(name, chains) {
			fmt.Fprintf(w, "  WARNING: %s\n", warn)
		}
	}
}

func formatChain(root string, c shard.Chain) string {
	var b strings.Builder
	cur := root
	for _, d := range c {
		kind := "via"
		switch {
		case d.AccessOnly:
			kind = "accesses"
		case d.IsVarowned:
			kind = "variable-owned via"
		}
		fmt.Fprintf(&b, "%s(%s) %s %s(%s) -> ", cur, d.DownColumn, kind, d.NextTable, d.UpColumn)
		cur = d.NextTable
	}
	fmt.Fprintf(&b, "shard %q", c.ShardKind())
	return b.String()
}

func complianceWarnings(name string, chains []shard.Chain) []string {
	var warnings []string

	owners := map[string]bool{}
	regular := 0
	variableOwned := false
	allNullable := false
	for _, c := range chains {
		if c.AccessOnly() {
			continue
		}
		regular++
		owners[c.ShardKind()] = true
		for _, d := range c {
			if d.IsVarowned {
				variableOwned = true
			}
		}
		if shard.IsNullableChain(c) {
			allNullable = true
		}
	}

	if variableOwned {
		warnings = append(warnings, "variable ownership (OWNS/ACCESSES) can move this table's rows between shards on every insert/update elsewhere — a full table scan may be required to bound copy count")
	}
	if regular > 1 {
		warnings = append(warnings, fmt.Sprintf("%d distinct owner chains reach this table (%d of them the same shard kind); a single row can fire more than one ON DEL rule during FORGET", regular, regular-len(owners)+1))
	}
	if regular > 5 {
		warnings = append(warnings, fmt.Sprintf("%d regular (non-accessor) shardings declared; consider whether every one is load-bearing", regular))
	}
	if allNullable {
		warnings = append(warnings, "every column of some ownership chain is nullable; a row with all of them NULL has no resolvable owner and sits permanently in the default shard")
	}
	return warnings
}
