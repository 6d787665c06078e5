// Package logstream is the Agent Log Stream (spec 4.H): the append-only,
// per-case timeline every orchestrator stage writes to and the streaming
// API reads from. It layers live fan-out (pkg/events' LISTEN/NOTIFY) over
// pkg/store's durable append/read, grounded on the teacher's
// pkg/events.Manager/listener pair for the same "durable row plus
// best-effort live push" shape tarsy uses for session updates.
package logstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/complyance/auditor/pkg/events"
	"github.com/complyance/auditor/pkg/model"
)

// Store is the subset of pkg/store.Store the log stream depends on.
type Store interface {
	AppendLog(ctx context.Context, caseID, agent, message string) (*model.LogEntry, error)
	ReadLogs(ctx context.Context, caseID string, fromIndex int) ([]*model.LogEntry, error)
}

// channelFor is the NOTIFY channel name for a case's live log fan-out.
func channelFor(caseID string) string { return "case_log_" + sanitizeChannel(caseID) }

// sanitizeChannel replaces each hyphen with an underscore, so a UUID case
// ID becomes a plain identifier; every other character passes through
// unchanged.
func sanitizeChannel(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '-' {
			out = append(out, '_')
			continue
		}
		out = append(out, c)
	}
	return string(out)
}

// Stream is the Agent Log Stream (spec 4.H). Entries are advisory: a
// publish failure never fails the caller, since "loss of the log never
// affects correctness of the case state" (spec 4.H).
type Stream struct {
	store  Store
	events *events.Manager // nil disables live fan-out; durable append/read still works
}

// New builds a Stream. events may be nil to run with durable storage only
// (e.g. in tests), disabling the Subscribe live-push path.
func New(store Store, ev *events.Manager) *Stream {
	return &Stream{store: store, events: ev}
}

// Append writes one entry to case_id's timeline (spec 4.H append,
// O(1)) and best-effort publishes it for any live subscriber. It never
// returns an error that would make a caller abort an audit step over a
// logging failure — failures are logged and swallowed, per spec 4.H's
// "entries are advisory" guarantee.
func (s *Stream) Append(ctx context.Context, caseID, agent, message string) {
	entry, err := s.store.AppendLog(ctx, caseID, agent, message)
	if err != nil {
		slog.Warn("log append failed, continuing", "case_id", caseID, "agent", agent, "error", err)
		return
	}

	if s.events == nil {
		return
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := s.events.Publish(ctx, channelFor(caseID), string(payload)); err != nil {
		slog.Warn("log live-publish failed, entry is still durable", "case_id", caseID, "error", err)
	}
}

// Read returns entries for caseID from fromIndex onward, in append order
// (spec 4.H, P10) — the poll-based variant of GET /audits/{case_id}/logs.
func (s *Stream) Read(ctx context.Context, caseID string, fromIndex int) ([]*model.LogEntry, error) {
	entries, err := s.store.ReadLogs(ctx, caseID, fromIndex)
	if err != nil {
		return nil, fmt.Errorf("reading case log: %w", err)
	}
	return entries, nil
}

// Subscribe opens a live feed of new entries for caseID, used by the
// websocket upgrade path of GET /audits/{case_id}/logs. Returns a nil
// channel, a no-op unsubscribe func, and a nil error if live fan-out is
// disabled (no events.Manager configured) —
// callers should fall back to polling Read in that case.
func (s *Stream) Subscribe(ctx context.Context, caseID string) (<-chan *model.LogEntry, func(), error) {
	if s.events == nil {
		return nil, func() {}, nil
	}

	raw, unsubscribe, err := s.events.Subscribe(ctx, channelFor(caseID))
	if err != nil {
		return nil, nil, fmt.Errorf("subscribing to case log: %w", err)
	}

	out := make(chan *model.LogEntry, 64)
	go func() {
		defer close(out)
		for payload := range raw {
			var entry model.LogEntry
			if err := json.Unmarshal([]byte(payload), &entry); err != nil {
				continue
			}
			out <- &entry
		}
	}()

	return out, unsubscribe, nil
}
