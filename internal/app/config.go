package app

import (
	"fmt"

	coreconfig "github.com/m3rciful/menubot/core/config"
	coredatabase "github.com/m3rciful/menubot/core/database"
)

// Config is the menubot configuration: the shared core plus storage.
type Config struct {
	coreconfig.Config `yaml:",inline"`
	Database          coredatabase.Config `yaml:"database"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// LoadConfig reads the YAML file, overlays the environment and validates both parts.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := cfg.Database.Normalize(); err != nil {
		return nil, err
	}
	if cfg.Screens.IDsStore == coreconfig.IDsStoreDB && !cfg.Database.Enabled() {
		return nil, fmt.Errorf("screens.ids_store 'db' requires database.driver postgres or sqlite")
	}
	return &cfg, nil
}
