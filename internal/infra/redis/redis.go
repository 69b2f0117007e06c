package redis

import (
	"context"
	"time"

	redigo "github.com/gomodule/redigo/redis"
	"go.uber.org/zap"

	"github.com/bitmercado/ms-orders/internal/logger"
)

type PoolConfig struct {
	Address     string
	Password    string
	MaxIdle     int
	IdleTimeout time.Duration
}

func NewPool(cfg PoolConfig) *redigo.Pool {
	return &redigo.Pool{
		MaxIdle:     cfg.MaxIdle,
		IdleTimeout: cfg.IdleTimeout,
		Dial: func() (redigo.Conn, error) {
			opts := []redigo.DialOption{}
			if cfg.Password != "" {
				opts = append(opts, redigo.DialPassword(cfg.Password))
			}
			return redigo.Dial("tcp", cfg.Address, opts...)
		},
		TestOnBorrow: func(conn redigo.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := conn.Do("PING")
			return err
		},
	}
}

// Client is a thin read-side wrapper; the catalog keys it serves are
// written by the catalog service, never by this one.
type Client struct {
	pool        *redigo.Pool
	connTimeout time.Duration
}

func NewClient(pool *redigo.Pool, connTimeout time.Duration) *Client {
	return &Client{
		pool:        pool,
		connTimeout: connTimeout,
	}
}

func (c *Client) Close() error {
	return c.pool.Close()
}

func (c *Client) withConn(ctx context.Context, fn func(conn redigo.Conn) error) error {
	connCtx, cancel := context.WithTimeout(ctx, c.connTimeout)
	defer cancel()

	conn, err := c.pool.GetContext(connCtx)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := conn.Close(); cErr != nil {
			logger.Error(ctx, "failed to close redis connection", zap.Error(cErr))
		}
	}()

	return fn(conn)
}

func (c *Client) ListRange(ctx context.Context, key string) ([]string, error) {
	var values []string
	err := c.withConn(ctx, func(conn redigo.Conn) error {
		result, err := redigo.Strings(conn.Do("LRANGE", key, 0, -1))
		if err != nil {
			return err
		}
		values = result
		return nil
	})
	return values, err
}

func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	var values map[string]string
	err := c.withConn(ctx, func(conn redigo.Conn) error {
		result, err := redigo.StringMap(conn.Do("HGETALL", key))
		if err != nil {
			return err
		}
		values = result
		return nil
	})
	return values, err
}

func (c *Client) Ping(ctx context.Context) error {
	return c.withConn(ctx, func(conn redigo.Conn) error {
		_, err := conn.Do("PING")
		return err
	})
}
