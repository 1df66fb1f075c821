// Package db is the SurrealDB backend for the capsule stores. It connects
// over an auto-reconnecting WebSocket and keeps entries, streak metadata and
// vectors in three tables.
package db

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

// Auth levels accepted in Config.AuthLevel.
const (
	AuthRoot     = "root"
	AuthDatabase = "database"
)

// Defaults applied to an empty Config field.
const (
	DefaultNamespace = "capsule"
	DefaultDatabase  = "journal"
)

func init() {
	// WebSocket upgrades fail when TLS negotiates HTTP/2.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

// Config holds SurrealDB connection configuration.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
	AuthLevel string
}

// normalize fills defaults and rejects settings the client cannot use.
func (c Config) normalize() (Config, error) {
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	switch strings.ToLower(c.AuthLevel) {
	case "", AuthRoot:
		c.AuthLevel = AuthRoot
	case AuthDatabase:
		c.AuthLevel = AuthDatabase
	default:
		return c, fmt.Errorf("unknown SurrealDB auth level %q", c.AuthLevel)
	}

	u, err := wsBaseURL(c.URL)
	if err != nil {
		return c, err
	}
	c.URL = u
	return c, nil
}

// wsBaseURL converts a configured endpoint into the base URL gorillaws
// expects: a ws:// or wss:// URL without the /rpc path, which it appends.
func wsBaseURL(raw string) (string, error) {
	u := strings.TrimSpace(raw)
	switch {
	case u == "":
		return "", fmt.Errorf("SurrealDB URL is required")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "ws://"), strings.HasPrefix(u, "wss://"):
	default:
		return "", fmt.Errorf("SurrealDB URL %q must use ws, wss, http or https", raw)
	}
	u = strings.TrimSuffix(u, "/")
	u = strings.TrimSuffix(u, "/rpc")
	return u, nil
}

// Client is a capsule store backed by SurrealDB.
type Client struct {
	conn *rews.Connection[*gorillaws.Connection]
	db   *surrealdb.DB
	log  *slog.Logger
}

// NewClient connects, signs in and selects the configured database.
func NewClient(ctx context.Context, cfg Config, log *slog.Logger) (*Client, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With("backend", "surreal", "namespace", cfg.Namespace, "database", cfg.Database)
	sdkLogger := logger.New(log.Handler())

	codec := surrealcbor.New()
	conn := rews.New(
		func(ctx context.Context) (*gorillaws.Connection, error) {
			return gorillaws.New(&connection.Config{
				BaseURL:     cfg.URL,
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLogger,
			}), nil
		},
		5*time.Second,
		codec,
		sdkLogger,
	)
	conn.Retryer = newRetryer()

	start := time.Now()
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.URL, err)
	}

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("from connection: %w", err)
	}
	if err := signIn(ctx, db, cfg); err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}
	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("use %s/%s: %w", cfg.Namespace, cfg.Database, err)
	}

	log.Info("store connected", "url", cfg.URL, "auth_level", cfg.AuthLevel,
		"duration_ms", time.Since(start).Milliseconds())
	return &Client{conn: conn, db: db, log: log}, nil
}

func newRetryer() *rews.ExponentialBackoffRetryer {
	r := rews.NewExponentialBackoffRetryer()
	r.InitialDelay = time.Second
	r.MaxDelay = 30 * time.Second
	r.Multiplier = 2.0
	r.MaxRetries = 10
	return r
}

func signIn(ctx context.Context, db *surrealdb.DB, cfg Config) error {
	auth := surrealdb.Auth{Username: cfg.Username, Password: cfg.Password}
	if cfg.AuthLevel == AuthDatabase {
		auth.Namespace = cfg.Namespace
		auth.Database = cfg.Database
	}
	if _, err := db.SignIn(ctx, auth); err != nil {
		return fmt.Errorf("sign in as %s (%s): %w", cfg.Username, cfg.AuthLevel, err)
	}
	return nil
}

// Close closes the connection.
func (c *Client) Close(ctx context.Context) error {
	c.log.Debug("closing store")
	return c.conn.Close(ctx)
}

func (c *Client) exec(ctx context.Context, sql string) error {
	if _, err := surrealdb.Query[any](ctx, c.db, sql, nil); err != nil {
		return wrapQueryError(err)
	}
	return nil
}

// InitSchema creates the capsule tables and indexes if they do not exist.
func (c *Client) InitSchema(ctx context.Context) error {
	if err := c.exec(ctx, SchemaSQL); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	c.log.Debug("schema ready", "tables", []string{entryTable, metaTable, vectorTable})
	return nil
}

// WipeData deletes every journal record but keeps the schema.
func (c *Client) WipeData(ctx context.Context) error {
	for _, table := range []string{vectorTable, metaTable, entryTable} {
		if err := c.exec(ctx, "DELETE "+table); err != nil {
			return fmt.Errorf("wipe %s: %w", table, err)
		}
	}
	c.log.Warn("journal data wiped")
	return nil
}
