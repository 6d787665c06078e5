package logstream

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyance/auditor/pkg/model"
)

type fakeStore struct {
	mu      sync.Mutex
	entries map[string][]*model.LogEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: map[string][]*model.LogEntry{}}
}

func (f *fakeStore) AppendLog(_ context.Context, caseID, agent, message string) (*model.LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := &model.LogEntry{Index: len(f.entries[caseID]), CaseID: caseID, Agent: agent, Message: message}
	f.entries[caseID] = append(f.entries[caseID], e)
	return e, nil
}

func (f *fakeStore) ReadLogs(_ context.Context, caseID string, fromIndex int) ([]*model.LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.LogEntry
	for _, e := range f.entries[caseID] {
		if e.Index >= fromIndex {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestStream_AppendOrderMatchesReadOrder(t *testing.T) {
	s := New(newFakeStore(), nil)
	ctx := context.Background()

	s.Append(ctx, "case-1", "planner", "starting")
	s.Append(ctx, "case-1", "navigator", "retrieving")
	s.Append(ctx, "case-1", "judge", "done")

	entries, err := s.Read(ctx, "case-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "planner", entries[0].Agent)
	assert.Equal(t, "navigator", entries[1].Agent)
	assert.Equal(t, "judge", entries[2].Agent)
}

func TestStream_ReadFromIndexSkipsEarlierEntries(t *testing.T) {
	s := New(newFakeStore(), nil)
	ctx := context.Background()

	s.Append(ctx, "case-1", "planner", "a")
	s.Append(ctx, "case-1", "navigator", "b")

	entries, err := s.Read(ctx, "case-1", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "navigator", entries[0].Agent)
}

func TestStream_SubscribeWithoutEventsReturnsNilChannel(t *testing.T) {
	s := New(newFakeStore(), nil)
	ch, unsub, err := s.Subscribe(context.Background(), "case-1")
	require.NoError(t, err)
	assert.Nil(t, ch)
	unsub()
}
