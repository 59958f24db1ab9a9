// Package config loads a database's startup settings — the ones read
// before the store is opened, so they cannot live inside the store itself
// (§6.2's data_root/db_name layout, §5's lock-wait timeout default). Values
// come from an optional <data_root>/<db_name>/config.yaml, overridden by
// environment variables, overridden by whatever the caller set explicitly.
//
// Grounded on cmd/bd/config.go's validateSyncConfig, which opens a
// dedicated github.com/spf13/viper instance scoped to one repo's
// config.yaml rather than viper's global singleton, so two databases in
// the same process never share settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultLockTimeout = 10 * time.Second
	defaultWorkerPool  = 4
)

// Config is a database's startup configuration.
type Config struct {
	// DataRoot is the parent of every database directory (§6.2).
	DataRoot string
	// Encryption turns on crypto.NewAEADManager; off uses crypto.NewNoopManager.
	Encryption bool
	// LockTimeout bounds how long a WriteTxn waits to acquire its locks (§5).
	LockTimeout time.Duration
	// WorkerPoolSize bounds how many connections run concurrently (§5).
	WorkerPoolSize int
}

// Load reads <dataRoot>/<dbName>/config.yaml if present, then environment
// variables prefixed K9DB_ (e.g. K9DB_LOCK_TIMEOUT), layering onto the
// defaults. A missing config.yaml is not an error — every database starts
// from defaults until one is written.
func Load(dataRoot, dbName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(filepath.Join(dataRoot, dbName, "config.yaml"))
	v.SetEnvPrefix("k9db")
	v.AutomaticEnv()

	v.SetDefault("encryption", false)
	v.SetDefault("lock_timeout", defaultLockTimeout.String())
	v.SetDefault("worker_pool_size", defaultWorkerPool)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
	}

	lockTimeout, err := time.ParseDuration(v.GetString("lock_timeout"))
	if err != nil {
		return nil, fmt.Errorf("config: lock_timeout %q: %w", v.GetString("lock_timeout"), err)
	}

	return &Config{
		DataRoot:       dataRoot,
		Encryption:     v.GetBool("encryption"),
		LockTimeout:    lockTimeout,
		WorkerPoolSize: v.GetInt("worker_pool_size"),
	}, nil
}

// DatabaseDir is the directory a database with this config's DataRoot and
// the given name lives in, per §6.2.
func (c *Config) DatabaseDir(dbName string) string {
	return filepath.Join(c.DataRoot, dbName)
}
