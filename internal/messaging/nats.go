package messaging

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/kline-sync/pkg/config"
	"github.com/kline-sync/pkg/models"
)

// Publisher announces dataset updates over NATS so downstream consumers can
// react to freshly synced klines
type Publisher struct {
	conn   *nats.Conn
	logger *logrus.Entry
	cfg    *config.NATSConfig
}

// NewPublisher creates a new NATS publisher
func NewPublisher(cfg *config.NATSConfig, logger *logrus.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnect),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Publisher{
		conn:   conn,
		logger: logger.WithField("component", "nats"),
		cfg:    cfg,
	}, nil
}

// Close flushes pending messages and closes the connection
func (p *Publisher) Close() error {
	if err := p.conn.Flush(); err != nil {
		p.logger.WithError(err).Warn("Failed to flush NATS connection")
	}
	p.conn.Close()
	return nil
}

// IsConnected checks if NATS is connected
func (p *Publisher) IsConnected() bool {
	return p.conn.IsConnected()
}

// PublishSyncReport publishes the report of a completed run on
// klines.synced.<symbol>
func (p *Publisher) PublishSyncReport(report *models.SyncReport) error {
	subject := fmt.Sprintf("klines.synced.%s", strings.ToLower(report.Symbol))

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal sync report: %w", err)
	}

	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish sync report: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"subject": subject,
		"symbol":  report.Symbol,
		"added":   report.RecordsAdded,
	}).Debug("Published sync report")

	return nil
}
