package cli

import (
	"os"
	"path/filepath"
)

// Paths provides access to the blockstream directory structure
type Paths struct {
	// AppName is the application name
	AppName string

	// HomeDir is the user's home directory
	HomeDir string

	// Dir overrides the app directory, e.g. when the config file lives
	// outside the home directory.
	Dir string
}

// NewPaths creates a new Paths instance for the given app
func NewPaths(appName string) (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{
		AppName: appName,
		HomeDir: home,
	}, nil
}

// BaseDir returns the base directory (~/.blockstream)
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// AppDir returns the app-specific directory (~/.blockstream/<app>)
func (p *Paths) AppDir() string {
	if p.Dir != "" {
		return p.Dir
	}
	return filepath.Join(p.BaseDir(), p.AppName)
}

// ConfigFile returns the config file path (~/.blockstream/<app>/config.yaml)
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.AppDir(), DefaultConfigFile)
}

// DataDir returns the data directory (~/.blockstream/<app>/data)
func (p *Paths) DataDir() string {
	return filepath.Join(p.AppDir(), "data")
}

// StoreDir is the default root of the local payload store.
func (p *Paths) StoreDir() string {
	return filepath.Join(p.DataDir(), "store")
}

// SpoolDir is the default badger directory of the segment spool.
func (p *Paths) SpoolDir() string {
	return filepath.Join(p.DataDir(), "spool")
}

// EnsureDataDir creates the data directory if it doesn't exist
func (p *Paths) EnsureDataDir() error {
	return os.MkdirAll(p.DataDir(), 0755)
}
