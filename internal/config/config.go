// Package config loads and validates the teamtasks TOML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/nick-dorsch/teamtasks/pkg/models"
)

const (
	EnvDB       = "TEAMTASKS_DB"
	EnvBind     = "TEAMTASKS_BIND"
	EnvLogLevel = "TEAMTASKS_LOG_LEVEL"
	EnvAdmins   = "TEAMTASKS_ADMIN_EMAILS"
)

// Duration is a time.Duration that unmarshals from TOML strings like "15s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	General  General  `toml:"general"`
	API      API      `toml:"api"`
	Identity Identity `toml:"identity"`
}

type General struct {
	LogLevel     string `toml:"log_level"`
	StateDB      string `toml:"state_db"`
	SnapshotPath string `toml:"snapshot_path"`
}

type API struct {
	Bind        string   `toml:"bind"`
	ReadTimeout Duration `toml:"read_timeout"`
}

type Identity struct {
	AdminEmails []string `toml:"admin_emails"`
	DefaultRole string   `toml:"default_role"`
}

// Role returns the configured default role for new users.
func (i Identity) Role() models.Role {
	r, err := models.ParseRole(i.DefaultRole)
	if err != nil {
		return models.RoleMember
	}
	return r
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the config at path. A missing file yields the defaults. A
// .env file in the working directory is loaded first, then environment
// overrides are applied on top of the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvDB); v != "" {
		cfg.General.StateDB = v
	}
	if v := os.Getenv(EnvBind); v != "" {
		cfg.API.Bind = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.General.LogLevel = v
	}
	if v := os.Getenv(EnvAdmins); v != "" {
		cfg.Identity.AdminEmails = strings.Split(v, ",")
	}
}

func applyDefaults(cfg *Config) {
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "info"
	}
	if cfg.General.StateDB == "" {
		cfg.General.StateDB = ".teamtasks/teamtasks.db"
	}
	if cfg.General.SnapshotPath == "" {
		cfg.General.SnapshotPath = ".teamtasks/tasks.jsonl"
	}
	if cfg.API.Bind == "" {
		cfg.API.Bind = "127.0.0.1:8000"
	}
	if cfg.API.ReadTimeout.Duration == 0 {
		cfg.API.ReadTimeout.Duration = 15 * time.Second
	}
	if cfg.Identity.DefaultRole == "" {
		cfg.Identity.DefaultRole = string(models.RoleMember)
	}

	emails := cfg.Identity.AdminEmails[:0]
	for _, e := range cfg.Identity.AdminEmails {
		if e = models.NormalizeEmail(e); e != "" {
			emails = append(emails, e)
		}
	}
	cfg.Identity.AdminEmails = emails
}

func validate(cfg *Config) error {
	switch strings.ToLower(cfg.General.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("general.log_level %q must be one of debug, info, warn, error", cfg.General.LogLevel)
	}

	if _, err := models.ParseRole(cfg.Identity.DefaultRole); err != nil {
		return fmt.Errorf("identity.default_role: %w", err)
	}

	for _, e := range cfg.Identity.AdminEmails {
		if _, err := mail.ParseAddress(e); err != nil {
			return fmt.Errorf("identity.admin_emails: invalid address %q", e)
		}
	}

	if cfg.API.ReadTimeout.Duration < 0 {
		return fmt.Errorf("api.read_timeout must be positive")
	}
	return nil
}
