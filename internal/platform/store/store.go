// Package store provides a unified interface to optional storage backends
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gitrank/internal/platform/logger"
)

// Store is the facade for optional backends.
// Backends not enabled in the config remain nil
type Store struct {
	// Log is the logger used by subclients
	Log logger.Logger

	// PG is the postgres sql seam, nil when disabled
	PG TxRunner

	// RD is the redis key-value seam, nil when disabled
	RD Keyval

	// CH is the clickhouse audit seam, nil when disabled
	CH Clickhouse
}

// Row exposes the minimal scan contract a single row needs
type Row interface {
	Scan(dest ...any) error
}

// Rows exposes the minimal iteration and scan for a result set
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// CommandTag is a tiny interface to inspect command results
type CommandTag interface {
	String() string
	RowsAffected() int64
}

// RowQuerier is the read and write surface repos use for sql
type RowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// TxRunner wraps transaction execution around a function
type TxRunner interface {
	RowQuerier
	Tx(ctx context.Context, fn func(q RowQuerier) error) error
}

// ScoredMember is one entry of a ranked range query
type ScoredMember struct {
	Member string
	Score  float64
}

// Pipe is the subset of Keyval writes that can be batched atomically
type Pipe interface {
	ZAdd(key string, score float64, member string)
	ZRem(key string, members ...string)
	SAdd(key string, members ...string)
	SRem(key string, members ...string)
}

// Keyval is the ranked-cache and lease seam backed by redis.
// Repos talk to this interface, never to a driver client directly
type Keyval interface {
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRem(ctx context.Context, key string, members ...string) error
	// ZRevRange returns members ordered by score descending for ranks [start, stop] inclusive
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// SetNX sets key=value with a TTL only when the key is absent
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// CompareDel deletes key atomically only when its value equals the given value
	CompareDel(ctx context.Context, key, value string) (bool, error)
	// Pipelined runs the queued writes as one atomic round trip
	Pipelined(ctx context.Context, fn func(p Pipe) error) error
	Close() error
}

// Clickhouse is a tiny seam for the write-only audit sink
type Clickhouse interface {
	Insert(ctx context.Context, table string, rows [][]any) error
	Close() error
}

// Pinger is any seam that can report readiness
type Pinger interface{ Ping(context.Context) error }

// Open constructs a Store with the requested backends
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}

	// defaults for zero logger to avoid nil checks
	s.Log = s.Log.With().Logger()

	if cfg.PG.Enabled {
		pgClient, err := openPG(ctx, cfg, s)
		if err != nil {
			return nil, err
		}
		s.PG = pgClient
	}

	if cfg.RD.Enabled {
		rdClient, err := openRD(ctx, cfg)
		if err != nil {
			s.close()
			return nil, err
		}
		s.RD = rdClient
	}

	if cfg.CH.Enabled {
		chClient, err := openCH(ctx, cfg)
		if err != nil {
			s.close()
			return nil, err
		}
		s.CH = chClient
	}

	return s, nil
}

// Guard verifies all configured seams the Store knows about
func (s *Store) Guard(ctx context.Context) error {
	if s == nil {
		return errors.New("nil store")
	}
	var errs []error
	if s.PG != nil {
		if p, ok := any(s.PG).(Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				errs = append(errs, fmt.Errorf("pg: %w", err))
			}
		}
	}
	if s.RD != nil {
		if p, ok := any(s.RD).(Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				errs = append(errs, fmt.Errorf("redis: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}

// Close releases every opened backend
func (s *Store) Close(_ context.Context) error {
	if s == nil {
		return nil
	}
	return s.close()
}

func (s *Store) close() error {
	var errs []error
	if s.PG != nil {
		if c, ok := any(s.PG).(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		s.PG = nil
	}
	if s.RD != nil {
		if err := s.RD.Close(); err != nil {
			errs = append(errs, err)
		}
		s.RD = nil
	}
	if s.CH != nil {
		if err := s.CH.Close(); err != nil {
			errs = append(errs, err)
		}
		s.CH = nil
	}
	return errors.Join(errs...)
}
