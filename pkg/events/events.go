// Package events is a thin Postgres LISTEN/NOTIFY pub/sub layer, grounded
// on the teacher's pkg/events manager/listener pair. It underlies the
// Agent Log Stream's live fan-out (pkg/logstream), generalized from
// tarsy's single
// alert-session-update channel to any named channel a caller picks.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Manager publishes and subscribes to Postgres NOTIFY channels. Each
// Subscribe call acquires a dedicated pool connection for the lifetime of
// the subscription, matching the teacher's one-conn-per-listener pattern
// (a pooled connection can't also serve LISTEN/NOTIFY for other callers).
type Manager struct {
	pool *pgxpool.Pool
}

// NewManager wraps an existing pool. The pool must have at least one
// extra connection of headroom per concurrent Subscribe call.
func NewManager(pool *pgxpool.Pool) *Manager {
	return &Manager{pool: pool}
}

// Publish sends payload on channel. Delivery is best-effort: a channel
// with no active listeners silently drops the notification, which is
// fine for advisory fan-out (callers needing durability read from the
// store directly, e.g. pkg/logstream.Read).
func (m *Manager) Publish(ctx context.Context, channel, payload string) error {
	_, err := m.pool.Exec(ctx, fmt.Sprintf("SELECT pg_notify(%s, %s)", quoteLiteral(channel), quoteLiteral(payload)))
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", channel, err)
	}
	return nil
}

// Subscribe starts listening on channel and returns a buffered delivery
// channel plus an unsubscribe func. The caller must invoke the returned
// func to release the dedicated connection back to the pool.
func (m *Manager) Subscribe(ctx context.Context, channel string) (<-chan string, func(), error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("acquiring listen connection: %w", err)
	}

	if _, err := conn.Exec(ctx, fmt.Sprintf("LISTEN %s", quoteIdent(channel))); err != nil {
		conn.Release()
		return nil, nil, fmt.Errorf("listening on %s: %w", channel, err)
	}

	out := make(chan string, 64)
	stopCh := make(chan struct{})
	var once sync.Once
	unsubscribe := func() {
		once.Do(func() { close(stopCh) })
	}

	go func() {
		defer conn.Release()
		defer close(out)
		for {
			select {
			case <-stopCh:
				return
			case <-ctx.Done():
				return
			default:
			}
			notification, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("listen connection error, stopping subscription", "channel", channel, "error", err)
				return
			}
			select {
			case out <- notification.Payload:
			case <-stopCh:
				return
			}
		}
	}()

	return out, unsubscribe, nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
