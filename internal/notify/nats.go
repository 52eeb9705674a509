package notify

import (
	"context"

	"github.com/koustreak/rostersync/internal/errs"
	"github.com/koustreak/rostersync/internal/logger"
	"github.com/nats-io/nats.go"
)

// NATS publishes alerts to a subject on a NATS server.
type NATS struct {
	cfg  *Config
	conn *nats.Conn
	log  *logger.Logger
}

// NewNATS connects to cfg.NATSURL.
func NewNATS(cfg *Config, log *logger.Logger) (*NATS, error) {
	if log == nil {
		log = logger.Nop()
	}

	opts := []nats.Option{nats.Name("rostersync")}
	if cfg.Timeout > 0 {
		opts = append(opts, nats.Timeout(cfg.Timeout))
	}

	conn, err := nats.Connect(cfg.NATSURL, opts...)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to connect to NATS server", err)
	}
	log.With().Str("subject", cfg.Subject).Logger().Debug("NATS notifier connected")

	return &NATS{cfg: cfg, conn: conn, log: log}, nil
}

// Notify publishes message and waits for the server to acknowledge the flush.
func (n *NATS) Notify(ctx context.Context, message string) error {
	msg := nats.NewMsg(n.cfg.Subject)
	msg.Data = []byte(message)
	if n.cfg.Title != "" {
		msg.Header.Set("Subject", n.cfg.Title)
	}

	if err := n.conn.PublishMsg(msg); err != nil {
		return errs.Wrap(errs.ErrKindConnectionFailed, "error publishing to NATS", err)
	}

	if n.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.cfg.Timeout)
		defer cancel()
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return errs.Wrap(errs.ErrKindTimeout, "error flushing NATS connection", err)
	}

	n.log.With().Str("subject", n.cfg.Subject).Logger().Info("notification sent")
	return nil
}

func (n *NATS) Close() error {
	if n.conn != nil && !n.conn.IsClosed() {
		n.conn.Close()
	}
	return nil
}
