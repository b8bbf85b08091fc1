package internal

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mdnotebook/internal/dialog"
	"github.com/starford/mdnotebook/internal/lifecycle"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
	AuthModeSession  = "session"
)

// AppName names the per-user config and data directories.
const AppName = "mdnotebook"

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Auth      AuthConfig        `yaml:"auth"`
	Instance  InstanceConfig    `yaml:"instance"`
	Lifecycle LifecycleConfig   `yaml:"lifecycle"`
	Dialog    DialogConfig      `yaml:"dialog"`
	Watch     WatchConfig       `yaml:"watch"`
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
	if err := c.Instance.Validate(); err != nil {
		return err
	}
	if err := c.Lifecycle.Validate(); err != nil {
		return err
	}
	return c.Dialog.Validate()
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

// HTTPConfig holds the loopback HTTP server configuration.
//
// AllowedOrigins lists the web origins of the UI layer (the webview's own
// origin). Requests from any other origin are rejected.
type HTTPConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// AllowedHosts returns the Host header values the server answers to: the
// configured address, plus localhost when bound to a loopback IP.
func (c *HTTPConfig) AllowedHosts() []string {
	port := strconv.Itoa(c.Port)
	hosts := []string{c.Address()}
	if ip := net.ParseIP(c.Host); ip != nil && ip.IsLoopback() {
		hosts = append(hosts, net.JoinHostPort("localhost", port))
	}
	return hosts
}

// Origins returns AllowedOrigins plus the server's own http origins.
func (c *HTTPConfig) Origins() []string {
	origins := append([]string(nil), c.AllowedOrigins...)
	for _, h := range c.AllowedHosts() {
		origins = append(origins, "http://"+h)
	}
	return origins
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Host, validation.Required),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds the recent-vault registry database configuration.
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
//   - "session" (default): a fresh Bearer token is issued on every start and
//     written to TokenFile (mode 0600) for the shell to read.
//   - "token": Bearer token authentication; Token must be non-empty.
//   - "disabled": no authentication required.
type AuthConfig struct {
	Mode      string `yaml:"mode"`
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeSession
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeSession, AuthModeDisabled, AuthModeToken)),
		validation.Field(&c.TokenFile, validation.When(c.Mode == AuthModeSession, validation.Required)),
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
	return c.Mode == AuthModeToken || c.Mode == AuthModeSession
}

// InstanceConfig holds single-instance configuration.
type InstanceConfig struct {
	SocketPath string `yaml:"socket_path"`
}

// Validate validates the instance configuration.
func (c *InstanceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SocketPath, validation.Required),
	)
}

// LifecycleConfig tunes the tray and startup timers.
type LifecycleConfig struct {
	QuitGrace     time.Duration `yaml:"quit_grace"`
	OpenFileDelay time.Duration `yaml:"open_file_delay"`
	Tooltip       string        `yaml:"tooltip"`
}

// Validate validates the lifecycle configuration.
func (c *LifecycleConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.QuitGrace, validation.Min(time.Duration(0))),
		validation.Field(&c.OpenFileDelay, validation.Min(time.Duration(0))),
	)
}

// DialogConfig selects the dialog backend.
type DialogConfig struct {
	Backend string `yaml:"backend"`
}

// Validate validates the dialog configuration.
func (c *DialogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(dialog.BackendZenity, dialog.BackendNone)),
	)
}

// WatchConfig toggles external-change detection for the stored vault.
type WatchConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfigPath returns <user config dir>/mdnotebook/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(userDir(os.UserConfigDir), AppName, "config.yaml")
}

func userDir(fn func() (string, error)) string {
	dir, err := fn()
	if err != nil {
		return "."
	}
	return dir
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Host: "127.0.0.1",
				Port: 17823,
			},
		},
		SQLite: SQLiteConfig{
			Path: filepath.Join(userDir(os.UserConfigDir), AppName, "mdnotebook.db"),
		},
		Auth: AuthConfig{
			Mode:      AuthModeSession,
			TokenFile: filepath.Join(userDir(os.UserConfigDir), AppName, "session.token"),
		},
		Instance: InstanceConfig{
			SocketPath: filepath.Join(os.TempDir(), fmt.Sprintf("%s-%d.sock", AppName, os.Getuid())),
		},
		Lifecycle: LifecycleConfig{
			QuitGrace:     lifecycle.DefaultQuitGrace,
			OpenFileDelay: lifecycle.DefaultOpenFileDelay,
			Tooltip:       lifecycle.DefaultTooltip,
		},
		Dialog: DialogConfig{
			Backend: dialog.BackendZenity,
		},
		Watch: WatchConfig{
			Enabled: true,
		},
	}
}
