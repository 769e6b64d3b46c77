package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"volsegsync/internal/errs"
	"volsegsync/internal/fileutil"
)

const (
	// StateDirName is the per-instance state directory created by init.
	StateDirName = ".volsegsync"

	configFileName  = "config.toml"
	historyFileName = "history.db"
	lockFileName    = "volsegsync.lock"

	// DefaultIndexName is used when init is not given an index name.
	DefaultIndexName = "index"
)

// Summary identifies the instance.
type Summary struct {
	ID          string `toml:"id"`
	Name        string `toml:"name"`
	Description string `toml:"description"`
}

// Indexes tracks the named indexes of the instance and which one is active.
type Indexes struct {
	Available []string `toml:"available"`
	Active    string   `toml:"active"`
}

// Logging contains log output preferences.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Viewer names the external viewer binary launched by the display command.
type Viewer struct {
	Binary string `toml:"binary"`
}

// Config encapsulates the per-instance settings stored in
// .volsegsync/config.toml. Dataset layout (directories and extensions) lives
// in each index manifest, not here, so indexes over different directory
// pairs can coexist in one instance.
type Config struct {
	Summary Summary `toml:"summary"`
	Index   Indexes `toml:"index"`
	Logging Logging `toml:"logging"`
	Viewer  Viewer  `toml:"viewer"`
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Summary: Summary{
			Name:        "No name",
			Description: "No description",
		},
		Index: Indexes{
			Available: []string{DefaultIndexName},
			Active:    DefaultIndexName,
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
		Viewer: Viewer{
			Binary: "volsegviewer",
		},
	}
}

// StateDir returns the instance state directory under root.
func StateDir(root string) string {
	return filepath.Join(root, StateDirName)
}

// Path returns the config file location for an instance root.
func Path(root string) string {
	return filepath.Join(StateDir(root), configFileName)
}

// ManifestPath returns the persisted manifest location for a named index.
func ManifestPath(root, indexName string) string {
	return filepath.Join(StateDir(root), indexName+".manifest.json")
}

// HistoryPath returns the audit history database location.
func HistoryPath(root string) string {
	return filepath.Join(StateDir(root), historyFileName)
}

// LockPath returns the mutation lock file location.
func LockPath(root string) string {
	return filepath.Join(StateDir(root), lockFileName)
}

// Initialized reports whether root already contains an instance.
func Initialized(root string) bool {
	info, err := os.Stat(Path(root))
	return err == nil && !info.IsDir()
}

// Load reads and validates the instance configuration under root. A missing
// state directory or config file yields ErrNotInitialized.
func Load(root string) (*Config, error) {
	cfg := Default()

	file, err := os.Open(Path(root))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.Wrap(errs.ErrNotInitialized, "config", "load",
				fmt.Sprintf("no volsegsync instance found in %s", root), nil)
		}
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, errs.Wrap(errs.ErrConfiguration, "config", "parse", "", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration atomically under root. The state directory
// must already exist.
func (c *Config) Save(root string) error {
	c.normalize()
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return fileutil.WriteFileAtomic(Path(root), data, 0o644)
}

// HasIndex reports whether name is one of the instance's indexes.
func (c *Config) HasIndex(name string) bool {
	for _, idx := range c.Index.Available {
		if idx == name {
			return true
		}
	}
	return false
}

// AddIndex registers a new index name and makes it active.
func (c *Config) AddIndex(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errs.Wrap(errs.ErrValidation, "config", "add index", "index name is empty", nil)
	}
	if c.HasIndex(name) {
		return errs.Wrap(errs.ErrValidation, "config", "add index",
			fmt.Sprintf("index %q already exists (available: %s)", name, strings.Join(c.Index.Available, ", ")), nil)
	}
	c.Index.Available = append(c.Index.Available, name)
	c.Index.Active = name
	return nil
}

// SelectIndex makes an existing index active.
func (c *Config) SelectIndex(name string) error {
	if !c.HasIndex(name) {
		return errs.Wrap(errs.ErrNotFound, "config", "select index",
			fmt.Sprintf("index %q is not available (available: %s)", name, strings.Join(c.Index.Available, ", ")), nil)
	}
	c.Index.Active = name
	return nil
}

func (c *Config) normalize() {
	c.Summary.Name = strings.TrimSpace(c.Summary.Name)
	c.Summary.Description = strings.TrimSpace(c.Summary.Description)
	c.Index.Active = strings.TrimSpace(c.Index.Active)
	for i, idx := range c.Index.Available {
		c.Index.Available[i] = strings.TrimSpace(idx)
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = "console"
	}
	if strings.TrimSpace(c.Viewer.Binary) == "" {
		c.Viewer.Binary = "volsegviewer"
	}
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Summary.Name == "" {
		return errs.Wrap(errs.ErrConfiguration, "config", "validate", "summary.name must be set", nil)
	}
	if len(c.Index.Available) == 0 {
		return errs.Wrap(errs.ErrConfiguration, "config", "validate", "index.available must list at least one index", nil)
	}
	if c.Index.Active == "" {
		return errs.Wrap(errs.ErrConfiguration, "config", "validate", "index.active must be set", nil)
	}
	if !c.HasIndex(c.Index.Active) {
		return errs.Wrap(errs.ErrConfiguration, "config", "validate",
			fmt.Sprintf("index.active %q is not in index.available", c.Index.Active), nil)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		return errs.Wrap(errs.ErrConfiguration, "config", "validate",
			fmt.Sprintf("logging.format %q must be console or json", c.Logging.Format), nil)
	}
	return nil
}
