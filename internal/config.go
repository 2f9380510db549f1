package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/gridcat/internal/catalog"
	"github.com/starford/gridcat/internal/collection"
	"github.com/starford/gridcat/internal/parser"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig  `yaml:"app"`
	SQLite      SQLiteConfig       `yaml:"sqlite"`
	Auth        AuthConfig         `yaml:"auth"`
	Watch       WatchConfig        `yaml:"watch"`
	Collections []CollectionConfig `yaml:"collections"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Watch.Validate(); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Collections))
	for i := range c.Collections {
		cc := &c.Collections[i]
		if err := cc.Validate(); err != nil {
			return fmt.Errorf("collections[%d]: %w", i, err)
		}
		if _, dup := seen[cc.Name]; dup {
			return fmt.Errorf("collections[%d]: duplicate name %q", i, cc.Name)
		}
		seen[cc.Name] = struct{}{}
	}
	return nil
}

// Targets resolves the configured collections for the catalog updater.
func (c *Config) Targets() ([]catalog.Target, error) {
	out := make([]catalog.Target, 0, len(c.Collections))
	for _, cc := range c.Collections {
		t, err := cc.Target()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
	Workers  int        `yaml:"workers"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Min(0), validation.Max(256)),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds the path of the update ledger database.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// WatchConfig controls the filesystem watcher.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// CollectionConfig describes one named feature collection.
type CollectionConfig struct {
	Name      string              `yaml:"name"`
	Spec      string              `yaml:"spec"`
	Partition collection.Strategy `yaml:"partition"`
	Update    UpdateConfig        `yaml:"update"`
}

// UpdateConfig holds the policies applied when the collection is updated
// without explicit overrides.
type UpdateConfig struct {
	Collection collection.Policy `yaml:"collection"`
	Children   collection.Policy `yaml:"children"`
}

// Validate validates the collection configuration and fills in defaults.
func (c *CollectionConfig) Validate() error {
	if c.Partition == "" {
		c.Partition = collection.StrategyNone
	}
	if c.Update.Collection == "" {
		c.Update.Collection = collection.Test
	}
	if c.Update.Children == "" {
		c.Update.Children = collection.Test
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Spec, validation.Required),
		validation.Field(&c.Partition, validation.In(collection.StrategyNone, collection.StrategyDirectory, collection.StrategyFile)),
	); err != nil {
		return err
	}
	if err := validation.ValidateStruct(&c.Update,
		validation.Field(&c.Update.Collection, validation.In(collection.Policies...)),
		validation.Field(&c.Update.Children, validation.In(collection.Policies...)),
	); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	if _, err := parser.Parse(c.Spec); err != nil {
		return err
	}
	return nil
}

// Target resolves the collection for the catalog updater.
func (c *CollectionConfig) Target() (catalog.Target, error) {
	spec, err := parser.Parse(c.Spec)
	if err != nil {
		return catalog.Target{}, fmt.Errorf("collection %s: %w", c.Name, err)
	}
	return catalog.Target{
		Name:     c.Name,
		Spec:     spec,
		Strategy: c.Partition,
		Self:     c.Update.Collection,
		Children: c.Update.Children,
	}, nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
			Workers: 4,
		},
		SQLite: SQLiteConfig{
			Path: "./gridcat.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: catalog.DefaultDebounce,
		},
	}
}
