package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"volsegsync/internal/config"
	"volsegsync/internal/history"
	"volsegsync/internal/index"
	"volsegsync/internal/logging"
)

// commandContext carries the lazily loaded instance state shared by every
// subcommand. Config and logger are resolved once on first use.
type commandContext struct {
	dirFlag       *string
	logLevelFlag  *string
	logFormatFlag *string

	loadOnce sync.Once
	root     string
	cfg      *config.Config
	logger   *slog.Logger
	loadErr  error
}

func newCommandContext(dirFlag, logLevelFlag, logFormatFlag *string) *commandContext {
	return &commandContext{
		dirFlag:       dirFlag,
		logLevelFlag:  logLevelFlag,
		logFormatFlag: logFormatFlag,
	}
}

// rootDir resolves the instance directory from --dir or the working
// directory. It does not require an initialized instance.
func (c *commandContext) rootDir() (string, error) {
	dir := ""
	if c.dirFlag != nil {
		dir = strings.TrimSpace(*c.dirFlag)
	}
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working directory: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve instance directory: %w", err)
	}
	return abs, nil
}

// ensureInstance loads the instance config and builds the logger. Every
// command except init goes through here.
func (c *commandContext) ensureInstance() (*config.Config, error) {
	c.loadOnce.Do(func() {
		root, err := c.rootDir()
		if err != nil {
			c.loadErr = err
			return
		}
		cfg, err := config.Load(root)
		if err != nil {
			c.loadErr = err
			return
		}
		logger, err := c.buildLogger(cfg)
		if err != nil {
			c.loadErr = err
			return
		}
		c.root = root
		c.cfg = cfg
		c.logger = logger
	})
	return c.cfg, c.loadErr
}

// buildLogger constructs the logger using config defaults overridden by the
// persistent flags.
func (c *commandContext) buildLogger(cfg *config.Config) (*slog.Logger, error) {
	level := cfg.Logging.Level
	format := cfg.Logging.Format
	if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
		level = strings.TrimSpace(*c.logLevelFlag)
	}
	if c.logFormatFlag != nil && strings.TrimSpace(*c.logFormatFlag) != "" {
		format = strings.TrimSpace(*c.logFormatFlag)
	}
	return logging.New(logging.Options{Level: level, Format: format})
}

func (c *commandContext) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return logging.NewNop()
}

// activeManifest loads the manifest of the active index.
func (c *commandContext) activeManifest() (*index.Manifest, error) {
	cfg, err := c.ensureInstance()
	if err != nil {
		return nil, err
	}
	return index.Load(config.ManifestPath(c.root, cfg.Index.Active))
}

// saveActiveManifest writes the manifest back under the active index name.
func (c *commandContext) saveActiveManifest(m *index.Manifest) error {
	return index.Save(m, config.ManifestPath(c.root, c.cfg.Index.Active))
}

// withLock runs fn while holding the instance mutation lock. A concurrent
// holder fails fast with ErrLocked.
func (c *commandContext) withLock(fn func() error) error {
	if _, err := c.ensureInstance(); err != nil {
		return err
	}
	lock, err := index.Acquire(config.LockPath(c.root))
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil {
			c.log().Warn("release lock", logging.Error(releaseErr))
		}
	}()
	return fn()
}

// recordRun appends an audit entry for a mutating command. Audit failures
// are logged, never fatal: the manifest save already succeeded.
func (c *commandContext) recordRun(ctx context.Context, command string, changes []index.Change, runErr error) {
	cfg := c.cfg
	if cfg == nil {
		return
	}
	store, err := history.Open(config.HistoryPath(c.root))
	if err != nil {
		c.log().Warn("open history store", logging.Error(err))
		return
	}
	defer func() { _ = store.Close() }()

	runID, err := store.BeginRun(ctx, command, cfg.Index.Active)
	if err != nil {
		c.log().Warn("record run", logging.Error(err))
		return
	}
	if err := store.RecordChanges(ctx, runID, changes); err != nil {
		c.log().Warn("record changes", logging.Error(err))
	}
	status := history.StatusCompleted
	detail := fmt.Sprintf("%d changes", len(changes))
	if runErr != nil {
		status = history.StatusFailed
		detail = runErr.Error()
	}
	if err := store.FinishRun(ctx, runID, status, detail); err != nil {
		c.log().Warn("finish run", logging.Error(err))
	}
}
