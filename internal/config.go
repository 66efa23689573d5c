package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Work   WorkConfig        `yaml:"work"`
	TaskDB TaskDBConfig      `yaml:"taskdb"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Work.Validate(); err != nil {
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

// WorkConfig describes the work directory holding the project files and
// its associated settings.
type WorkConfig struct {
	Path string `yaml:"path"`
	// StateDir holds the per-project sync state sidecar files. Empty
	// means a ".egret-state" directory inside the work directory.
	StateDir string `yaml:"state_dir"`
	// ArchiveDir is the default archive bundle directory, relative to
	// the work directory. Projects override it with an Archive-Dir
	// metadata field.
	ArchiveDir string `yaml:"archive_dir"`
	// DefaultTags are merged into every project's tag set.
	DefaultTags []string `yaml:"default_tags"`
	// AuthorEmail limits git activity enrichment to one author.
	AuthorEmail string `yaml:"author_email"`
}

// Validate validates the work directory configuration.
func (c *WorkConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// TaskDBConfig holds the SQLite task store configuration. An empty
// path disables task synchronization.
type TaskDBConfig struct {
	Path string `yaml:"path"`
}

// Enabled returns true when a task store is configured.
func (c *TaskDBConfig) Enabled() bool {
	return c.Path != ""
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
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
		Work: WorkConfig{
			Path:       "./projects",
			ArchiveDir: "archive",
		},
		TaskDB: TaskDBConfig{
			Path: "./egret.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
