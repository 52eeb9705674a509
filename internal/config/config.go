// Package config loads rostersync settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	cenv "github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"go.yaml.in/yaml/v3"

	"github.com/koustreak/rostersync/internal/database"
	"github.com/koustreak/rostersync/internal/errs"
	"github.com/koustreak/rostersync/internal/filestore"
	"github.com/koustreak/rostersync/internal/lms"
	"github.com/koustreak/rostersync/internal/logger"
	"github.com/koustreak/rostersync/internal/notify"
)

// Config is the full rostersync configuration.
type Config struct {
	Log      logger.Config    `yaml:"log"`
	LMS      lms.Config       `yaml:"lms"`
	Storage  filestore.Config `yaml:"storage"`
	Database DatabaseConfig   `yaml:"database"`
	Notify   notify.Config    `yaml:"notify"`
	Jobs     JobsConfig       `yaml:"jobs"`
	Server   ServerConfig     `yaml:"server"`
	Schedule ScheduleConfig   `yaml:"schedule"`
}

// DatabaseConfig is the destination connection plus the table being loaded.
type DatabaseConfig struct {
	database.Config `yaml:",inline"`

	Schema    string `yaml:"schema" env:"BUSINESS_TRACKING_SCHEMA" validate:"required"`
	Table     string `yaml:"table" env:"ROSTERSYNC_DB_TABLE" validate:"required"`
	UniqueKey string `yaml:"unique_key" env:"ROSTERSYNC_DB_UNIQUE_KEY" validate:"required"`

	// DatetimeColumns are re-read strictly as MM-DD-YYYY HH:MM:SS after coercion.
	DatetimeColumns []string `yaml:"datetime_columns" env:"ROSTERSYNC_DB_DATETIME_COLUMNS" envSeparator:","`

	// Parts assemble a Postgres DSN when DSN itself is not set.
	Parts DSNParts `yaml:"parts"`
}

// DSNParts are the individual connection settings the DSN can be built from.
type DSNParts struct {
	User     string `yaml:"user" env:"BUSINESS_TRACKING_USER"`
	Password string `yaml:"password" env:"BUSINESS_TRACKING_PASSWORD"`
	Host     string `yaml:"host" env:"BUSINESS_TRACKING_HOST"`
	Port     string `yaml:"port" env:"BUSINESS_TRACKING_PORT"`
	DBName   string `yaml:"dbname" env:"BUSINESS_TRACKING_DBNAME"`
	SSLMode  string `yaml:"sslmode" env:"BUSINESS_TRACKING_SSLMODE"`
}

// JobsConfig names the two stages in logs and alerts.
type JobsConfig struct {
	Extract string `yaml:"extract" env:"ROSTERSYNC_JOB_EXTRACT" validate:"required"`
	Load    string `yaml:"load" env:"ROSTERSYNC_JOB_LOAD" validate:"required"`
}

// ServerConfig configures the trigger API.
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ROSTERSYNC_SERVER_ADDR" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"ROSTERSYNC_SERVER_SHUTDOWN_TIMEOUT"`
}

// ScheduleConfig holds the optional cron expression for unattended syncs.
type ScheduleConfig struct {
	Cron string `yaml:"cron" env:"ROSTERSYNC_SCHEDULE_CRON"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	db := database.DefaultConfig("")
	return &Config{
		Log:     *logger.DefaultConfig(),
		LMS:     *lms.DefaultConfig(),
		Storage: *filestore.DefaultConfig(),
		Database: DatabaseConfig{
			Config:    *db,
			Schema:    "public",
			Table:     "department_members",
			UniqueKey: "lms_user_id",
			DatetimeColumns: []string{
				"date_hired",
				"date_terminated",
				"date_edited",
				"date_added",
				"last_login_date",
			},
		},
		Notify: *notify.DefaultConfig(),
		Jobs: JobsConfig{
			Extract: "rostersync-extract",
			Load:    "rostersync-load",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 15 * time.Second,
		},
	}
}

// Load reads path (skipped when empty), applies environment overrides and
// fills in the DSN from its parts when needed. It does not validate; call
// ValidateExtract or ValidateLoad for the stages about to run.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "error opening config file", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "error parsing config file", err)
		}
	}

	if err := cenv.Parse(cfg); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "error reading environment", err)
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = cfg.Database.Parts.DSN()
	}
	return cfg, nil
}

// DSN renders the parts as a postgres:// URL, or "" when no host is set.
func (p DSNParts) DSN() string {
	if p.Host == "" {
		return ""
	}
	host := p.Host
	if p.Port != "" {
		host = net.JoinHostPort(p.Host, p.Port)
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   host,
		Path:   "/" + p.DBName,
	}
	if p.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {p.SSLMode}}.Encode()
	}
	return u.String()
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateExtract checks the settings the extract stage depends on.
func (c *Config) ValidateExtract() error {
	return check(&c.Log, &c.LMS, &c.Storage, &c.Notify, &c.Jobs)
}

// ValidateLoad checks the settings the load stage depends on.
func (c *Config) ValidateLoad() error {
	if err := check(&c.Log, &c.Storage, &c.Database, &c.Notify, &c.Jobs); err != nil {
		return err
	}
	if c.Database.DSN == "" {
		return errs.New(errs.ErrKindInvalidInput,
			"invalid configuration: database.dsn or BUSINESS_TRACKING_HOST is required")
	}
	return nil
}

// ValidateServer checks the trigger API settings on top of both stages.
func (c *Config) ValidateServer() error {
	if err := c.ValidateExtract(); err != nil {
		return err
	}
	if err := c.ValidateLoad(); err != nil {
		return err
	}
	return check(&c.Server, &c.Schedule)
}

func check(sections ...any) error {
	for _, s := range sections {
		if err := validate.Struct(s); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				f := verrs[0]
				return errs.Wrap(errs.ErrKindInvalidInput,
					fmt.Sprintf("invalid configuration: %s failed %q", f.Namespace(), f.Tag()), err)
			}
			return errs.Wrap(errs.ErrKindInvalidInput, "invalid configuration", err)
		}
	}
	return nil
}
