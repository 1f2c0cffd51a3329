package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/circuitbreaker"
)

// Supported drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Config holds database configuration. DSN wins over the individual postgres fields.
type Config struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConnections  int           `mapstructure:"max_connections"`
	IdleConnections int           `mapstructure:"idle_connections"`
	MaxLifetime     time.Duration `mapstructure:"max_lifetime"`
	Workers         int           `mapstructure:"workers"`
	QueueSize       int           `mapstructure:"queue_size"`
}

func (c Config) withDefaults() Config {
	if c.Driver == "" {
		c.Driver = DriverPostgres
	}
	if c.MaxConnections == 0 {
		c.MaxConnections = 25
	}
	if c.IdleConnections == 0 {
		c.IdleConnections = 5
	}
	if c.MaxLifetime == 0 {
		c.MaxLifetime = 5 * time.Minute
	}
	if c.SSLMode == "" {
		c.SSLMode = "require"
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	return c
}

// DataSource returns the connection string for the configured driver
func (c Config) DataSource() (string, error) {
	c = c.withDefaults()
	if c.DSN != "" {
		return c.DSN, nil
	}
	switch c.Driver {
	case DriverPostgres:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode), nil
	case DriverSQLite:
		if c.Database == "" {
			return "", fmt.Errorf("sqlite database path is required")
		}
		return c.Database, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

type archiveRequest struct {
	archive  *SessionArchive
	callback func(error)
}

// Client archives tailoring sessions. Writes go through a queue drained by a small worker pool.
type Client struct {
	db     *circuitbreaker.SQLXWrapper
	logger *zap.Logger
	driver string

	queue    chan archiveRequest
	workers  int
	stopCh   chan struct{}
	workerWg sync.WaitGroup
	once     sync.Once
}

// Open connects using cfg, pings and starts the write workers
func Open(cfg Config, logger *zap.Logger) (*Client, error) {
	cfg = cfg.withDefaults()
	dsn, err := cfg.DataSource()
	if err != nil {
		return nil, err
	}
	raw, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	raw.SetMaxOpenConns(cfg.MaxConnections)
	raw.SetMaxIdleConns(cfg.IdleConnections)
	raw.SetConnMaxLifetime(cfg.MaxLifetime)

	c := NewClient(raw, cfg, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.db.PingContext(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	c.logger.Info("Session archive connected",
		zap.String("driver", cfg.Driver),
		zap.Int("workers", c.workers),
	)
	return c, nil
}

// NewClient wraps an open handle and starts the write workers
func NewClient(raw *sqlx.DB, cfg Config, logger *zap.Logger) *Client {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		db:      circuitbreaker.NewSQLXWrapper(raw, "session-archive", logger),
		logger:  logger,
		driver:  cfg.Driver,
		queue:   make(chan archiveRequest, cfg.QueueSize),
		workers: cfg.Workers,
		stopCh:  make(chan struct{}),
	}
	for i := 0; i < c.workers; i++ {
		c.workerWg.Add(1)
		go c.writeWorker(i)
	}
	return c
}

func (c *Client) writeWorker(id int) {
	defer c.workerWg.Done()
	for {
		select {
		case <-c.stopCh:
			c.drainQueue()
			c.logger.Debug("Archive worker stopped", zap.Int("worker_id", id))
			return
		case req := <-c.queue:
			c.process(req)
		}
	}
}

func (c *Client) process(req archiveRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := c.SaveSessionArchive(ctx, req.archive)
	if err != nil {
		c.logger.Error("Failed to archive session",
			zap.String("session_id", req.archive.SessionID),
			zap.Error(err),
		)
	}
	if req.callback != nil {
		req.callback(err)
	}
}

func (c *Client) drainQueue() {
	for {
		select {
		case req := <-c.queue:
			c.process(req)
		default:
			return
		}
	}
}

// QueueArchive schedules an archive write. A full queue writes synchronously instead of
// dropping the record.
func (c *Client) QueueArchive(a *SessionArchive, callback func(error)) {
	req := archiveRequest{archive: a, callback: callback}
	select {
	case c.queue <- req:
	default:
		c.logger.Warn("Archive queue is full, writing synchronously", zap.String("session_id", a.SessionID))
		c.process(req)
	}
}

// Close stops the workers after draining the queue and closes the database
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.stopCh)
		c.workerWg.Wait()
		if cerr := c.db.Close(); cerr != nil {
			err = fmt.Errorf("failed to close database: %w", cerr)
		}
	})
	return err
}

// Wrapper returns the breaker-wrapped handle for health checks
func (c *Client) Wrapper() *circuitbreaker.SQLXWrapper {
	return c.db
}
