package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/haivivi/blockstream/pkg/buffer"
	"github.com/haivivi/blockstream/pkg/storage"
)

const (
	// DefaultBaseDir is the base configuration directory name
	DefaultBaseDir = ".blockstream"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.yaml"
)

// Storage backends accepted in StorageConfig.Backend.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Config represents the main configuration structure for a CLI app
type Config struct {
	// AppName is the application name (e.g., "blockstream")
	AppName string `yaml:"-"`

	// CurrentContext is the name of the currently active context
	CurrentContext string `yaml:"current_context,omitempty"`

	// Contexts is a map of context name to context configuration
	Contexts map[string]*Context `yaml:"contexts,omitempty"`

	// configPath is the path to the config file
	configPath string
}

// Context is a named set of buffer, storage and spool settings.
type Context struct {
	// Name is the context name
	Name string `yaml:"name"`

	// Buffer tunes the Streams created by commands.
	Buffer BufferConfig `yaml:"buffer,omitempty"`

	// Storage selects where put/get move payloads.
	Storage *StorageConfig `yaml:"storage,omitempty"`

	// SpoolDir is the badger directory for the segment spool (optional,
	// defaults under the app data dir).
	SpoolDir string `yaml:"spool_dir,omitempty"`
}

// BufferConfig mirrors buffer.Options in the config file.
type BufferConfig struct {
	BlockSize            int  `yaml:"block_size,omitempty"`
	PoolSize             int  `yaml:"pool_size,omitempty"`
	DisableLengthCaching bool `yaml:"disable_length_caching,omitempty"`
}

// Options converts the config into buffer.Options.
func (b BufferConfig) Options() *buffer.Options {
	return &buffer.Options{
		BlockSize:            b.BlockSize,
		PoolSize:             b.PoolSize,
		DisableLengthCaching: b.DisableLengthCaching,
	}
}

// StorageConfig selects a payload store.
type StorageConfig struct {
	// Backend is "local" (default) or "s3".
	Backend string `yaml:"backend,omitempty"`

	// Dir is the root for the local backend.
	Dir string `yaml:"dir,omitempty"`

	// S3 configures the s3 backend.
	S3 *storage.S3Config `yaml:"s3,omitempty"`
}

// Open builds the configured FileStore. fallbackDir is used by the local
// backend when Dir is empty.
func (s *StorageConfig) Open(fallbackDir string) (storage.FileStore, error) {
	backend := BackendLocal
	if s != nil && s.Backend != "" {
		backend = s.Backend
	}
	switch backend {
	case BackendLocal:
		dir := fallbackDir
		if s != nil && s.Dir != "" {
			dir = s.Dir
		}
		return storage.NewLocal(dir)
	case BackendS3:
		if s.S3 == nil {
			return nil, fmt.Errorf("storage backend s3 requires an s3 section")
		}
		return storage.OpenS3(*s.S3)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// LoadConfig loads or creates configuration for the specified app
func LoadConfig(appName string) (*Config, error) {
	return LoadConfigWithPath(appName, "")
}

// LoadConfigWithPath loads configuration from a custom path
func LoadConfigWithPath(appName, customPath string) (*Config, error) {
	var configPath string

	if customPath != "" {
		configPath = customPath
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, DefaultBaseDir, appName, DefaultConfigFile)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := &Config{
		AppName:    appName,
		Contexts:   make(map[string]*Context),
		configPath: configPath,
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Save()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]*Context)
	}
	cfg.AppName = appName
	cfg.configPath = configPath

	return cfg, nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	// 0600: the s3 section may carry a secret key.
	if err := os.WriteFile(c.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Path returns the config file path
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the config directory path
func (c *Config) Dir() string {
	return filepath.Dir(c.configPath)
}

// AddContext adds or replaces a context
func (c *Config) AddContext(name string, ctx *Context) error {
	ctx.Name = name
	c.Contexts[name] = ctx
	return c.Save()
}

// DeleteContext removes a context
func (c *Config) DeleteContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return c.Save()
}

// UseContext sets the current context
func (c *Config) UseContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	c.CurrentContext = name
	return c.Save()
}

// GetContext returns a specific context
func (c *Config) GetContext(name string) (*Context, error) {
	ctx, ok := c.Contexts[name]
	if !ok {
		return nil, fmt.Errorf("context %q not found", name)
	}
	return ctx, nil
}

// ResolveContext returns the named context, the current context when name
// is empty, or an empty default context when neither is set.
func (c *Config) ResolveContext(name string) (*Context, error) {
	if name != "" {
		return c.GetContext(name)
	}
	if c.CurrentContext == "" {
		return &Context{Name: "default"}, nil
	}
	return c.GetContext(c.CurrentContext)
}

// ListContexts returns all context names in sorted order
func (c *Config) ListContexts() []string {
	names := make([]string, 0, len(c.Contexts))
	for name := range c.Contexts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Redacted returns a copy of ctx with secrets masked for display.
func (ctx *Context) Redacted() *Context {
	cp := *ctx
	if ctx.Storage != nil && ctx.Storage.S3 != nil {
		st := *ctx.Storage
		s3 := *st.S3
		s3.SecretAccessKey = MaskAPIKey(s3.SecretAccessKey)
		st.S3 = &s3
		cp.Storage = &st
	}
	return &cp
}

// MaskAPIKey masks a secret for display
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
