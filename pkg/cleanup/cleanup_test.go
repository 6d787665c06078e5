package cleanup

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/complyance/auditor/pkg/config"
)

type fakeStore struct {
	completedCalls int32
	failedCalls    int32
	logCalls       int32
	failLogs       bool
}

func (f *fakeStore) DeleteCompletedJobsOlderThan(_ context.Context, _ time.Duration) (int64, error) {
	atomic.AddInt32(&f.completedCalls, 1)
	return 2, nil
}

func (f *fakeStore) DeleteFailedJobsOlderThan(_ context.Context, _ time.Duration) (int64, error) {
	atomic.AddInt32(&f.failedCalls, 1)
	return 1, nil
}

func (f *fakeStore) DeleteCaseLogsForTerminalCasesOlderThan(_ context.Context, _ time.Duration) (int64, error) {
	atomic.AddInt32(&f.logCalls, 1)
	if f.failLogs {
		return 0, errors.New("boom")
	}
	return 5, nil
}

func TestReaper_RunOnceCallsAllThreeTTLClasses(t *testing.T) {
	fs := &fakeStore{}
	r := New(fs, config.DefaultRetentionConfig())

	r.runOnce(context.Background())

	assert.EqualValues(t, 1, fs.completedCalls)
	assert.EqualValues(t, 1, fs.failedCalls)
	assert.EqualValues(t, 1, fs.logCalls)
}

func TestReaper_OneFailingClassDoesNotBlockOthers(t *testing.T) {
	fs := &fakeStore{failLogs: true}
	r := New(fs, config.DefaultRetentionConfig())

	r.runOnce(context.Background())

	assert.EqualValues(t, 1, fs.completedCalls)
	assert.EqualValues(t, 1, fs.failedCalls)
	assert.EqualValues(t, 1, fs.logCalls)
}

func TestReaper_StartStopTerminatesCleanly(t *testing.T) {
	fs := &fakeStore{}
	cfg := config.DefaultRetentionConfig()
	cfg.CleanupInterval = 5 * time.Millisecond
	r := New(fs, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	r.Stop()

	assert.GreaterOrEqual(t, fs.completedCalls, int32(1))
}
