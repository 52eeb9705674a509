// Package notify delivers failure alerts for pipeline runs.
package notify

import (
	"context"
	"time"

	"github.com/koustreak/rostersync/internal/logger"
)

// Notifier sends a one-line alert to whoever watches the pipeline.
type Notifier interface {
	Notify(ctx context.Context, message string) error
	Close() error
}

// Config selects and configures the notification sink. With no NATS URL
// alerts are only logged.
type Config struct {
	NATSURL string        `yaml:"nats_url" env:"ROSTERSYNC_NOTIFY_NATS_URL" validate:"omitempty,url"`
	Subject string        `yaml:"subject" env:"ROSTERSYNC_NOTIFY_SUBJECT" validate:"required_with=NATSURL"`
	Timeout time.Duration `yaml:"timeout" env:"ROSTERSYNC_NOTIFY_TIMEOUT"`

	// Title is sent as the Subject header, for relays that forward to chat.
	Title string `yaml:"title" env:"ROSTERSYNC_NOTIFY_TITLE"`
}

// DefaultConfig returns a log-only configuration.
func DefaultConfig() *Config {
	return &Config{
		Subject: "rostersync.failures",
		Timeout: 5 * time.Second,
		Title:   "Slack Notification",
	}
}

// New returns the notifier cfg describes.
func New(cfg *Config, log *logger.Logger) (Notifier, error) {
	if cfg == nil || cfg.NATSURL == "" {
		return NewLog(log), nil
	}
	return NewNATS(cfg, log)
}

// Log writes alerts to the logger instead of sending them anywhere.
type Log struct {
	log *logger.Logger
}

// NewLog returns a log-only notifier. A nil logger uses the global one.
func NewLog(log *logger.Logger) *Log {
	if log == nil {
		log = logger.Global()
	}
	return &Log{log: log}
}

func (l *Log) Notify(_ context.Context, message string) error {
	l.log.With().Str("notification", message).Logger().Error("pipeline failure")
	return nil
}

func (l *Log) Close() error { return nil }
