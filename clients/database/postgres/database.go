// package postgres implements database.MetricsDatabase on postgres using bun
package postgres

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/kava-labs/webhook-batch-proxy/clients/database"
	"github.com/kava-labs/webhook-batch-proxy/logging"
)

var (
	ErrMissingEndpoint = errors.New("database endpoint url must be set")
	ErrMissingUsername = errors.New("database username must be set")
)

// DatabaseConfig contains values for creating a
// new connection to a postgres database
type DatabaseConfig struct {
	DatabaseName                     string
	DatabaseEndpointURL              string
	DatabaseUsername                 string
	DatabasePassword                 string
	ReadTimeoutSeconds               int64
	WriteTimeoutSeconds              int64
	DatabaseMaxIdleConnections       int64
	DatabaseConnectionMaxIdleSeconds int64
	DatabaseMaxOpenConnections       int64
	SSLEnabled                       bool
	QueryLoggingEnabled              bool
	Logger                           *logging.ServiceLogger
}

// Client wraps a connection to a postgres database
type Client struct {
	db     *bun.DB
	logger *logging.ServiceLogger
}

var _ database.MetricsDatabase = (*Client)(nil)

// NewClient returns a new connection to the specified
// postgres data and error (if any)
func NewClient(config DatabaseConfig) (*Client, error) {
	if config.DatabaseEndpointURL == "" {
		return nil, ErrMissingEndpoint
	}

	if config.DatabaseUsername == "" {
		return nil, ErrMissingUsername
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	options := []pgdriver.Option{
		pgdriver.WithAddr(config.DatabaseEndpointURL),
		pgdriver.WithUser(config.DatabaseUsername),
		pgdriver.WithPassword(config.DatabasePassword),
		pgdriver.WithDatabase(config.DatabaseName),
		pgdriver.WithReadTimeout(time.Second * time.Duration(config.ReadTimeoutSeconds)),
		pgdriver.WithWriteTimeout(time.Second * time.Duration(config.WriteTimeoutSeconds)),
	}

	if config.SSLEnabled {
		options = append(options, pgdriver.WithTLSConfig(&tls.Config{InsecureSkipVerify: false}))
	} else {
		options = append(options, pgdriver.WithInsecure(true))
	}

	connector := pgdriver.NewConnector(options...)

	logger.Debug().
		Str("addr", config.DatabaseEndpointURL).
		Str("database", config.DatabaseName).
		Bool("ssl", config.SSLEnabled).
		Msg("creating database client")

	sqldb := sql.OpenDB(connector)

	// https://go.dev/doc/database/manage-connections#connection_pool_properties
	sqldb.SetMaxIdleConns(int(config.DatabaseMaxIdleConnections))
	sqldb.SetConnMaxIdleTime(time.Second * time.Duration(config.DatabaseConnectionMaxIdleSeconds))
	sqldb.SetMaxOpenConns(int(config.DatabaseMaxOpenConnections))

	db := bun.NewDB(sqldb, pgdialect.New())

	if config.QueryLoggingEnabled {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	return &Client{
		db:     db,
		logger: logger,
	}, nil
}

// HealthCheck returns an error if the database can not
// be connected to and queried, nil otherwise
func (c *Client) HealthCheck() error {
	if c.db == nil {
		return errors.New("database client is not connected")
	}

	_, err := c.db.Exec(`SELECT 1;`)

	return err
}

// WaitForConnection retries HealthCheck with exponential backoff
// until it succeeds, maxWait elapses or ctx is done
func (c *Client) WaitForConnection(ctx context.Context, maxWait time.Duration) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = maxWait

	attempt := 0

	err := backoff.Retry(func() error {
		attempt++

		err := c.HealthCheck()
		if err != nil {
			c.logger.Debug().Err(err).Int("attempt", attempt).Msg("database not reachable yet")
		}

		return err
	}, backoff.WithContext(policy, ctx))

	if err != nil {
		return fmt.Errorf("database not reachable after %d attempts: %w", attempt, err)
	}

	return nil
}

// Close closes the underlying connection pool
func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}

	return c.db.Close()
}
