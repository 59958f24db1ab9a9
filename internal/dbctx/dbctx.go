// Package dbctx assembles the value every SQL-facing entry point threads
// through a call: the KV store, the crypto manager, the shard graph and
// table registry, the catalog, the view sink, configuration, a logger, and
// a metrics recorder. It is the Go analogue of the daemon/server wiring in
// cmd/bd/main.go, which builds one long-lived struct from flags and env
// then passes it to every subcommand, generalized from "one repo process"
// to "one k9db database process".
package dbctx

import (
	"context"
	cryptorand "crypto/rand"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/k9db/k9db/internal/catalog"
	"github.com/k9db/k9db/internal/compliance"
	"github.com/k9db/k9db/internal/config"
	"github.com/k9db/k9db/internal/crypto"
	"github.com/k9db/k9db/internal/gdpr"
	"github.com/k9db/k9db/internal/kv"
	"github.com/k9db/k9db/internal/kv/bboltkv"
	"github.com/k9db/k9db/internal/lockfile"
	"github.com/k9db/k9db/internal/metrics"
	"github.com/k9db/k9db/internal/shard"
	"github.com/k9db/k9db/internal/sqlast"
	"github.com/k9db/k9db/internal/sqlast/hacky"
	"github.com/k9db/k9db/internal/sqlengine"
	"github.com/k9db/k9db/internal/table"
	"github.com/k9db/k9db/internal/views"
)

// Database is one open k9db database: its engine, its storage, and the
// ambient services (logging, metrics, locking) that wrap it.
type Database struct {
	Name   string
	Config *config.Config

	Store   *bboltkv.Store
	Engine  *sqlengine.Engine
	GDPR    *gdpr.Engine
	Metrics *metrics.Recorder
	Log     *slog.Logger

	lock *lockfile.Lock
}

// Open takes the on-disk lock for <dataRoot>/<dbName>, opens (or creates)
// its bbolt file, and replays every DDL statement internal/catalog has
// persisted — §4.12's "on Initialize, replay in order" — to rebuild the
// shard graph and table registry before the database is usable.
func Open(ctx context.Context, dataRoot, dbName string) (*Database, error) {
	cfg, err := config.Load(dataRoot, dbName)
	if err != nil {
		return nil, fmt.Errorf("dbctx: load config: %w", err)
	}
	dbDir := cfg.DatabaseDir(dbName)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("dbctx: create %s: %w", dbDir, err)
	}

	lock := lockfile.New(dbDir)
	locked, err := lock.TryAcquire()
	if err != nil {
		return nil, fmt.Errorf("dbctx: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("dbctx: %s: %w", dbDir, lockfile.ErrBusy)
	}

	store, err := bboltkv.Open(filepath.Join(dbDir, "k9db.db"), bboltkv.Options{LockTimeout: cfg.LockTimeout})
	if err != nil {
		_ = lock.Release()
		return nil, fmt.Errorf("dbctx: open store: %w", err)
	}
	if err := store.CreateColumnFamily(catalog.CF); err != nil {
		_ = store.Close()
		_ = lock.Release()
		return nil, fmt.Errorf("dbctx: create catalog column family: %w", err)
	}

	cryptoFn := func() crypto.Manager { return crypto.NewNoopManager() }
	if cfg.Encryption {
		key, kerr := newGlobalKey()
		if kerr != nil {
			_ = store.Close()
			_ = lock.Release()
			return nil, fmt.Errorf("dbctx: generate encryption key: %w", kerr)
		}
		cryptoFn = func() crypto.Manager {
			mgr, merr := crypto.NewAEADManager(key)
			if merr != nil {
				// A key that just worked for every prior table cannot fail
				// here; this only happens if AEAD construction itself is
				// broken, which is an invariant violation per §7.
				panic(fmt.Sprintf("dbctx: AEADManager: %v", merr))
			}
			return mgr
		}
	}

	cat := catalog.New()
	eng := sqlengine.New(shard.NewGraph(), cat, views.New(), cryptoFn)

	rec, err := metrics.New(os.Stdout)
	if err != nil {
		_ = store.Close()
		_ = lock.Release()
		return nil, fmt.Errorf("dbctx: init metrics: %w", err)
	}

	db := &Database{
		Name:    dbName,
		Config:  cfg,
		Store:   store,
		Engine:  eng,
		Metrics: rec,
		Log:     slog.Default().With("db", dbName),
		lock:    lock,
	}
	db.GDPR = gdpr.New(eng)

	if err := db.replay(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// replay rebuilds the in-memory schema from the persisted DDL log.
func (db *Database) replay(ctx context.Context) error {
	snap, err := db.Store.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("dbctx: snapshot for replay: %w", err)
	}
	ddls, err := db.Engine.Catalog.All(snap)
	snap.Close()
	if err != nil {
		return fmt.Errorf("dbctx: read catalog: %w", err)
	}
	if len(ddls) == 0 {
		return nil
	}

	return db.Store.RunInTransaction(ctx, func(txn kv.WriteTxn) error {
		for _, raw := range ddls {
			stmt, perr := hacky.Parse(raw, nil)
			if perr != nil {
				return fmt.Errorf("dbctx: replay %q: %w", raw, perr)
			}
			if _, perr := db.Engine.ReplayDDL(txn, db.Store, raw, stmt); perr != nil {
				return fmt.Errorf("dbctx: replay %q: %w", raw, perr)
			}
		}
		return nil
	})
}

// NewTransaction starts a fresh compliance.Transaction for a session, id'd
// with a random uuid so the ambient logger/metrics can correlate every
// write inside it back to the same caller-visible unit of work (§4.13's
// "transaction ids via google/uuid").
func (db *Database) NewTransaction() (string, *compliance.Transaction) {
	return uuid.NewString(), compliance.New(db.Engine.Graph, db.Engine.Tables)
}

// Execute runs one already-parsed statement inside txn, routing DDL through
// ExecuteDDL (it needs rawSQL for catalog persistence) and everything else
// through Execute.
func (db *Database) Execute(txn kv.WriteTxn, touch *compliance.Transaction, rawSQL string, stmt sqlast.Statement) (*sqlengine.Result, error) {
	switch stmt.(type) {
	case *sqlast.CreateTable, *sqlast.CreateIndex:
		return db.Engine.ExecuteDDL(txn, db.Store, rawSQL, stmt)
	default:
		return db.Engine.Execute(txn, db.Store, touch, stmt)
	}
}

// Accessor returns a read-only view over txn's writes, for callers (GDPR
// GET after a FORGET in the same transaction) that need read-your-writes
// without committing.
func (db *Database) Accessor(txn kv.WriteTxn) table.Accessor { return table.FromWriteTxn(txn) }

// newGlobalKey generates the one process-lifetime encryption key §4.13/§5
// describes as "immutable after init" and "in-memory only; restart loses
// them" (§6.2) — there is no persisted key material to rotate or recover.
func newGlobalKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := cryptorand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// Close releases the store and the directory lock. Safe to call once.
func (db *Database) Close() error {
	var firstErr error
	if db.Metrics != nil {
		if err := db.Metrics.Shutdown(context.Background()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if db.Store != nil {
		if err := db.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if db.lock != nil {
		if err := db.lock.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
