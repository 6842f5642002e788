package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brettbedarf/memvfs/internal/util"
	"gopkg.in/yaml.v3"
)

// Bytes per MB
const MB = 1024 * 1024

// CLI style verbosity values accepted by [ConfigOverride.LogLvl]
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultLogLvl = util.InfoLevel

	DefaultFsName = "memvfs"
	DefaultName   = "memvfs"

	// DefaultRootName is the name given to the root directory a server installs
	DefaultRootName = "root"

	DefaultDirPerms  uint32 = 0o755
	DefaultFilePerms uint32 = 0o644

	// DefaultTouchOnWrite makes host writes refresh a file's modification time
	DefaultTouchOnWrite = true

	// DefaultStrictNames keeps the permissive behaviour where siblings may share a name
	DefaultStrictNames = false

	// DefaultResolveCacheSize is the number of resolved paths kept by a Tree
	DefaultResolveCacheSize = 256

	// DefaultMaxFileSize is the largest size a write or truncate may grow a file to
	DefaultMaxFileSize int64 = 1 << 30

	// DefaultMaxWrite is the maximum write size per FUSE request
	DefaultMaxWrite = 1 * MB

	// DefaultAttrTimeout is the attribute cache timeout in seconds
	DefaultAttrTimeout = 1.0

	// DefaultEntryTimeout is the directory entry cache timeout in seconds
	DefaultEntryTimeout = 1.0

	// DefaultDirectIO determines whether to bypass the kernel page cache
	DefaultDirectIO = false
)

// Config contains runtime configuration values for the in-memory filesystem.
type Config struct {
	MountOptions
	LogLvl util.LogLevel // (Default Info)

	RootName         string // Name of the root directory installed by the server (Default "root")
	DirPerms         uint32 // Permission bits for new directories (Default 0755)
	FilePerms        uint32 // Permission bits for new files (Default 0644)
	TouchOnWrite     bool   // Writes through the Tree refresh the file's mtime (Default true)
	StrictNames      bool   // Reject a sibling with an already used name (Default false)
	ResolveCacheSize int    // Path resolution cache entries; 0 disables (Default 256)
	MaxFileSize      int64  // Largest file size writes and truncates may reach; 0 disables (Default 1GiB)

	// NOTE: Low-level FUSE config (strongly recommend defaults unless you really know what you're doing):

	MaxWrite     int     // Maximum write size per FUSE request (Default 1MB)
	AttrTimeout  float64 // Attribute cache timeout in seconds (Default 1.0)
	EntryTimeout float64 // Directory entry cache timeout in seconds (Default 1.0)
	DirectIO     bool    // Whether to bypass page cache for file reads (Default false)
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	// LogLvl is a CLI style verbosity between 1 (error) and 5 (trace)
	LogLvl           *int     `yaml:"verbose,omitempty" json:"verbose,omitempty"`
	Debug            *bool    `yaml:"debug,omitempty" json:"debug,omitempty"`
	FsName           *string  `yaml:"fs_name,omitempty" json:"fs_name,omitempty"`
	Name             *string  `yaml:"name,omitempty" json:"name,omitempty"`
	AllowOther       *bool    `yaml:"allow_other,omitempty" json:"allow_other,omitempty"`
	RootName         *string  `yaml:"root_name,omitempty" json:"root_name,omitempty"`
	DirPerms         *uint32  `yaml:"dir_perms,omitempty" json:"dir_perms,omitempty"`
	FilePerms        *uint32  `yaml:"file_perms,omitempty" json:"file_perms,omitempty"`
	TouchOnWrite     *bool    `yaml:"touch_on_write,omitempty" json:"touch_on_write,omitempty"`
	StrictNames      *bool    `yaml:"strict_names,omitempty" json:"strict_names,omitempty"`
	ResolveCacheSize *int     `yaml:"resolve_cache_size,omitempty" json:"resolve_cache_size,omitempty"`
	MaxFileSize      *int64   `yaml:"max_file_size,omitempty" json:"max_file_size,omitempty"`
	MaxWrite         *int     `yaml:"max_write,omitempty" json:"max_write,omitempty"`
	AttrTimeout      *float64 `yaml:"attr_timeout,omitempty" json:"attr_timeout,omitempty"`
	EntryTimeout     *float64 `yaml:"entry_timeout,omitempty" json:"entry_timeout,omitempty"`
	DirectIO         *bool    `yaml:"direct_io,omitempty" json:"direct_io,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		MountOptions: MountOptions{
			FsName: DefaultFsName,
			Name:   DefaultName,
		},
		LogLvl:           DefaultLogLvl,
		RootName:         DefaultRootName,
		DirPerms:         DefaultDirPerms,
		FilePerms:        DefaultFilePerms,
		TouchOnWrite:     DefaultTouchOnWrite,
		StrictNames:      DefaultStrictNames,
		ResolveCacheSize: DefaultResolveCacheSize,
		MaxFileSize:      DefaultMaxFileSize,
		MaxWrite:         DefaultMaxWrite,
		AttrTimeout:      DefaultAttrTimeout,
		EntryTimeout:     DefaultEntryTimeout,
		DirectIO:         DefaultDirectIO,
	}
}

// NewConfig returns the default config with override applied (override may be nil).
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.LogLvl != nil {
		c.LogLvl = VerbosityToLogLevel(*override.LogLvl)
	}
	if override.Debug != nil {
		c.Debug = *override.Debug
	}
	if override.FsName != nil {
		c.FsName = *override.FsName
	}
	if override.Name != nil {
		c.Name = *override.Name
	}
	if override.AllowOther != nil {
		c.AllowOther = *override.AllowOther
	}
	if override.RootName != nil {
		c.RootName = *override.RootName
	}
	if override.DirPerms != nil {
		c.DirPerms = *override.DirPerms
	}
	if override.FilePerms != nil {
		c.FilePerms = *override.FilePerms
	}
	if override.TouchOnWrite != nil {
		c.TouchOnWrite = *override.TouchOnWrite
	}
	if override.StrictNames != nil {
		c.StrictNames = *override.StrictNames
	}
	if override.ResolveCacheSize != nil {
		c.ResolveCacheSize = *override.ResolveCacheSize
	}
	if override.MaxFileSize != nil {
		c.MaxFileSize = *override.MaxFileSize
	}
	if override.MaxWrite != nil {
		c.MaxWrite = *override.MaxWrite
	}
	if override.AttrTimeout != nil {
		c.AttrTimeout = *override.AttrTimeout
	}
	if override.EntryTimeout != nil {
		c.EntryTimeout = *override.EntryTimeout
	}
	if override.DirectIO != nil {
		c.DirectIO = *override.DirectIO
	}
}

// VerbosityToLogLevel maps a CLI verbosity (clamped to 1..5) to a [util.LogLevel].
func VerbosityToLogLevel(verbose int) util.LogLevel {
	verbose = max(ErrorVerbose, min(verbose, TraceVerbose))
	lvls := [5]util.LogLevel{util.ErrorLevel, util.WarnLevel, util.InfoLevel, util.DebugLevel, util.TraceLevel}
	return lvls[verbose-1]
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
// This is a convenience function that combines NewDefaultConfig, LoadConfigOverrideFile, and Merge.
func NewConfigFromFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	cfg.Merge(override)
	return cfg, nil
}
