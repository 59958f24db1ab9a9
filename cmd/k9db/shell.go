package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/k9db/k9db/internal/compliance"
	"github.com/k9db/k9db/internal/dbctx"
	"github.com/k9db/k9db/internal/gdpr"
	"github.com/k9db/k9db/internal/kv"
	"github.com/k9db/k9db/internal/prepared"
	"github.com/k9db/k9db/internal/sqlast"
	"github.com/k9db/k9db/internal/sqlast/hacky"
	"github.com/k9db/k9db/internal/sqlengine"
	"github.com/k9db/k9db/internal/table"
)

var shellCmd = &cobra.Command{
	Use:   "shell <database>",
	Short: "interactive SQL session over one statement per line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := dbctx.Open(rootCtx, dataDir, args[0])
		if err != nil {
			return fmt.Errorf("shell: %w", err)
		}
		defer db.Close()

		s := newSession(db, cmd.OutOrStdout())
		stopWatch := s.watchSessionConfig()
		defer stopWatch()

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			s.runLine(rootCtx, scanner.Text())
		}
		if s.txn != nil {
			fmt.Fprintln(s.out, "warning: session ended with an open CTX; rolling back")
			s.ctxEnd(false)
		}
		return scanner.Err()
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

// session holds one shell connection's pragma state: whether statements
// echo before running, whether writes auto-commit one at a time or require
// an explicit CTX block, and (while a CTX block is open) the WriteTxn and
// compliance.Transaction every statement in the block shares.
type session struct {
	db      *dbctx.Database
	out     io.Writer
	echo    bool
	autoCtx bool

	txn   kv.WriteTxn
	touch *compliance.Transaction
}

func newSession(db *dbctx.Database, out io.Writer) *session {
	return &session{db: db, out: out, autoCtx: true}
}

// watchSessionConfig live-reloads <db dir>/session.yaml's echo/auto_ctx
// flags with fsnotify, so a long-running shell can be retuned without a
// restart. This gives the otherwise inert filesystem-watching dependency a
// real caller, the way a sidecar config reloader would in a longer-lived
// service.
func (s *session) watchSessionConfig() func() {
	dir := s.db.Config.DatabaseDir(s.db.Name)
	path := dir + "/session.yaml"
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return func() {}
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return func() {}
	}
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name == path && (ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create)) {
					s.reloadSessionConfig(path)
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return func() { watcher.Close() }
}

func (s *session) reloadSessionConfig(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	text := strings.ToUpper(string(data))
	switch {
	case strings.Contains(text, "ECHO: TRUE"), strings.Contains(text, "ECHO: ON"):
		s.echo = true
	case strings.Contains(text, "ECHO: FALSE"), strings.Contains(text, "ECHO: OFF"):
		s.echo = false
	}
	switch {
	case strings.Contains(text, "AUTO_CTX: FALSE"), strings.Contains(text, "AUTO_CTX: OFF"):
		s.autoCtx = false
	case strings.Contains(text, "AUTO_CTX: TRUE"), strings.Contains(text, "AUTO_CTX: ON"):
		s.autoCtx = true
	}
}

func (s *session) runLine(ctx context.Context, line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "--") {
		return
	}
	upper := strings.ToUpper(strings.TrimSuffix(line, ";"))

	switch {
	case strings.HasPrefix(upper, "SET ECHO"):
		s.echo = strings.Contains(upper, "ON")
		return
	case strings.HasPrefix(upper, "SET AUTO_CTX"):
		s.autoCtx = strings.Contains(upper, "ON")
		return
	case upper == "CTX START":
		s.ctxStart(ctx)
		return
	case upper == "CTX COMMIT":
		s.ctxEnd(true)
		return
	case upper == "CTX ROLLBACK":
		s.ctxEnd(false)
		return
	case strings.HasPrefix(upper, "SHOW VIEW "):
		s.showView(strings.TrimSpace(line[len("SHOW VIEW "):]))
		return
	case upper == "SHOW MEMORY":
		s.showMemory()
		return
	case upper == "SHOW SHARDS":
		s.showShards()
		return
	case upper == "SHOW INDICES":
		s.showIndices()
		return
	case strings.HasPrefix(upper, "SHOW PREPARED "):
		s.showPrepared(strings.TrimSpace(line[len("SHOW PREPARED "):]))
		return
	case upper == "EXPLAIN COMPLIANCE":
		explainCompliance(s.out, s.db)
		return
	}

	if s.echo {
		fmt.Fprintln(s.out, line)
	}
	stmt, err := hacky.Parse(line, nil)
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return
	}
	if g, ok := stmt.(*sqlast.GDPRStatement); ok {
		s.runGDPR(ctx, g)
		return
	}
	s.runStatement(ctx, line, stmt)
}

// ctxStart opens an explicit CTX block: one WriteTxn and one
// compliance.Transaction shared by every statement until CTX COMMIT or CTX
// ROLLBACK, per §6.1's session pragma that lets a caller batch several
// statements' compliance checks into one pass instead of one per statement.
func (s *session) ctxStart(ctx context.Context) {
	if s.txn != nil {
		fmt.Fprintln(s.out, "error: a CTX block is already open")
		return
	}
	txn, err := s.db.Store.Begin(ctx)
	if err != nil {
		fmt.Fprintf(s.out, "error: CTX START: %v\n", err)
		return
	}
	_, touch := s.db.NewTransaction()
	s.txn, s.touch = txn, touch
}

func (s *session) ctxEnd(commit bool) {
	if s.txn == nil {
		fmt.Fprintln(s.out, "error: no open CTX block")
		return
	}
	txn, touch := s.txn, s.touch
	s.txn, s.touch = nil, nil

	if !commit {
		touch.Discard()
		if err := txn.Rollback(); err != nil {
			fmt.Fprintf(s.out, "error: CTX ROLLBACK: %v\n", err)
		}
		return
	}
	if err := touch.Commit(s.db.Accessor(txn)); err != nil {
		_ = txn.Rollback()
		fmt.Fprintf(s.out, "error: CTX COMMIT: %v\n", err)
		return
	}
	if err := txn.Commit(); err != nil {
		fmt.Fprintf(s.out, "error: CTX COMMIT: %v\n", err)
	}
}

// runStatement executes one parsed DDL/DML statement either inside the
// session's open CTX block, or (AUTO_CTX on, the default) in its own
// one-statement transaction, or fails if neither applies.
func (s *session) runStatement(ctx context.Context, rawSQL string, stmt sqlast.Statement) {
	if s.txn != nil {
		res, err := s.db.Execute(s.txn, s.touch, rawSQL, stmt)
		s.report(res, err)
		return
	}
	if !s.autoCtx {
		fmt.Fprintln(s.out, "error: AUTO_CTX is off and no CTX block is open; run CTX START first")
		return
	}

	var res *sqlengine.Result
	err := s.db.Store.RunInTransaction(ctx, func(txn kv.WriteTxn) error {
		_, touch := s.db.NewTransaction()
		r, err := s.db.Execute(txn, touch, rawSQL, stmt)
		if err != nil {
			return err
		}
		if err := touch.Commit(s.db.Accessor(txn)); err != nil {
			return err
		}
		res = r
		return nil
	})
	s.report(res, err)
}

func (s *session) report(res *sqlengine.Result, err error) {
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return
	}
	if res == nil {
		return
	}
	for _, row := range res.Rows {
		parts := make([]string, len(row))
		for i, v := range row {
			parts[i] = v.String()
		}
		fmt.Fprintln(s.out, strings.Join(parts, "|"))
	}
	fmt.Fprintf(s.out, "(%d row(s))\n", res.Count)
}

// runGDPR dispatches GDPR GET/FORGET directly to internal/gdpr, bypassing
// sqlengine.Execute: GDPRStatement is part of the parsed AST (the parser
// handles it uniformly with every other statement) but the engine's own
// Execute deliberately does not, since a GDPR plan crosses every table's
// ownership graph instead of running against one.
func (s *session) runGDPR(ctx context.Context, g *sqlast.GDPRStatement) {
	switch g.Operation {
	case sqlast.GDPRGet:
		if s.txn != nil {
			rows, err := s.db.GDPR.Get(s.db.Accessor(s.txn), g.ShardKind, g.SubjectID)
			s.reportGDPRGet(rows, err)
			return
		}
		snap, err := s.db.Store.Snapshot(ctx)
		if err != nil {
			fmt.Fprintf(s.out, "error: GDPR GET: %v\n", err)
			return
		}
		defer snap.Close()
		rows, err := s.db.GDPR.Get(table.FromSnapshot(snap), g.ShardKind, g.SubjectID)
		s.reportGDPRGet(rows, err)

	case sqlast.GDPRForget:
		if s.txn != nil {
			n, err := s.db.GDPR.Forget(s.txn, g.ShardKind, g.SubjectID)
			s.reportGDPRForget(n, err)
			return
		}
		var n int
		err := s.db.Store.RunInTransaction(ctx, func(txn kv.WriteTxn) error {
			var ferr error
			n, ferr = s.db.GDPR.Forget(txn, g.ShardKind, g.SubjectID)
			return ferr
		})
		s.reportGDPRForget(n, err)
	}
}

func (s *session) reportGDPRGet(rows []gdpr.TableRows, err error) {
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return
	}
	for _, tr := range rows {
		fmt.Fprintf(s.out, "-- %s (%d row(s))\n", tr.Table, len(tr.Rows))
		for _, row := range tr.Rows {
			parts := make([]string, len(row))
			for i, v := range row {
				parts[i] = v.String()
			}
			fmt.Fprintln(s.out, strings.Join(parts, "|"))
		}
	}
}

func (s *session) reportGDPRForget(n int, err error) {
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "(%d op(s))\n", n)
}

func (s *session) showView(name string) {
	rows := s.db.Engine.Views.Query(name)
	for _, row := range rows {
		parts := make([]string, len(row))
		for i, v := range row {
			parts[i] = v.String()
		}
		fmt.Fprintln(s.out, strings.Join(parts, "|"))
	}
	fmt.Fprintf(s.out, "(%d row(s))\n", len(rows))
}

func (s *session) showMemory() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	fmt.Fprintf(s.out, "alloc=%dKB sys=%dKB num_gc=%d goroutines=%d\n",
		m.Alloc/1024, m.Sys/1024, m.NumGC, runtime.NumGoroutine())
}

func (s *session) showShards() {
	var kinds []string
	for name := range s.db.Engine.Tables {
		if s.db.Engine.Graph.IsDataSubject(name) {
			kinds = append(kinds, name)
		}
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintln(s.out, k)
	}
}

func (s *session) showIndices() {
	names := make([]string, 0, len(s.db.Engine.Tables))
	for name := range s.db.Engine.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		tbl, _ := s.db.Engine.Tables.Table(name)
		for _, idx := range tbl.Indices() {
			cols := make([]string, len(idx.Columns))
			for i, c := range idx.Columns {
				cols[i] = tbl.Columns[c].Name
			}
			unique := ""
			if idx.Unique {
				unique = " UNIQUE"
			}
			fmt.Fprintf(s.out, "%s.%s(%s)%s\n", name, idx.Name, strings.Join(cols, ","), unique)
		}
	}
}

// showPrepared canonicalizes query the way a real PREPARE statement would
// and reports whether it would be served from a materialized view, per
// §4.9 — an introspection pragma rather than a stateful PREPARE/EXECUTE
// pair, since a shell session is gone the moment the process exits and has
// nothing durable to name a prepared statement against.
func (s *session) showPrepared(query string) {
	canon := prepared.Canonicalize(query)
	needsFlow := prepared.NeedsFlow(canon.Text)
	fmt.Fprintf(s.out, "canonical: %s\n", canon.Text)
	fmt.Fprintf(s.out, "needs_flow: %v\n", needsFlow)
	if needsFlow {
		return
	}
	desc, err := prepared.FromTables(canon.Text, s.db.Engine.Tables)
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return
	}
	for i := range desc.ArgNames {
		fmt.Fprintf(s.out, "arg[%d]: %s.%s %s ? (kind=%v)\n", i, desc.ArgTables[i], desc.ArgNames[i], desc.ArgOps[i], desc.ArgTypes[i])
	}
}
