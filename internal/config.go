package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/alecthomas/chroma/v2/styles"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/neuralnotes/internal/index"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Seed   SeedConfig        `yaml:"seed"`
	Index  IndexConfig       `yaml:"index"`
	Auth   AuthConfig        `yaml:"auth"`
	Editor EditorConfig      `yaml:"editor"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Seed.Validate(); err != nil {
		return err
	}
	if err := c.Editor.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
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

// SeedConfig controls where the initial notes come from.
//
// With an empty Path the built-in sample notes are loaded. Builtin adds them
// on top of an imported vault. Watch keeps the store in step with the vault
// while the process runs.
type SeedConfig struct {
	Path    string `yaml:"path"`
	Watch   bool   `yaml:"watch"`
	Builtin bool   `yaml:"builtin"`
}

// Validate validates the seed configuration.
func (c *SeedConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Watch, validation.Required.Error("is required when watch is on"))),
	)
}

// UseBuiltin reports whether the built-in notes should be loaded.
func (c *SeedConfig) UseBuiltin() bool {
	return c.Path == "" || c.Builtin
}

// IndexConfig selects the SQLite database behind search and the link graph.
// The default keeps it in memory; a file DSN is only a cache and is rebuilt
// from the store on start.
type IndexConfig struct {
	DSN string `yaml:"dsn"`
}

// EditorConfig tunes editing and rendering.
type EditorConfig struct {
	SuggestionLimit int    `yaml:"suggestion_limit"`
	HighlightStyle  string `yaml:"highlight_style"`
}

// Validate validates the editor configuration.
func (c *EditorConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SuggestionLimit, validation.Required, validation.Min(1), validation.Max(50)),
		validation.Field(&c.HighlightStyle, validation.Required, validation.By(knownStyle)),
	)
}

func knownStyle(v any) error {
	name, _ := v.(string)
	if !slices.Contains(styles.Names(), name) {
		return errors.New("unknown highlight style")
	}
	return nil
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

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Index: IndexConfig{
			DSN: index.MemoryDSN,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Editor: EditorConfig{
			SuggestionLimit: 5,
			HighlightStyle:  "github",
		},
	}
}
