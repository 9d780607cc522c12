package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sm "mc.service/models"
)

type fakeSyncer struct {
	mu     sync.Mutex
	calls  []string
	failOn map[string]error
}

func (f *fakeSyncer) SyncSymbolPriceHistory(symbol string) (*sm.SyncResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, symbol)
	if err, ok := f.failOn[symbol]; ok {
		return nil, err
	}
	return &sm.SyncResponse{Symbol: symbol, LastRefreshed: time.Now()}, nil
}

func (f *fakeSyncer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestRegister_RejectsBadInput(t *testing.T) {
	s := New(context.Background(), &fakeSyncer{})
	assert.Error(t, s.Register("0 0 * * *", nil))
	assert.Error(t, s.Register("not a cron", []string{"AAPL"}))
}

func TestRunNow_ContinuesPastFailures(t *testing.T) {
	boom := errors.New("provider unavailable")
	syncer := &fakeSyncer{failOn: map[string]error{"MSFT": boom}}
	s := New(context.Background(), syncer)

	require.NoError(t, s.Register("0 30 22 * * 1-5", []string{"AAPL", "MSFT", "GOOG"}))

	err := s.RunNow()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"AAPL", "MSFT", "GOOG"}, syncer.Calls())
}

func TestRunNow_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	syncer := &fakeSyncer{}
	s := New(ctx, syncer)
	require.NoError(t, s.Register("@daily", []string{"AAPL"}))

	assert.ErrorIs(t, s.RunNow(), context.Canceled)
	assert.Empty(t, syncer.Calls())
}

func TestStart_FiresOnSchedule(t *testing.T) {
	syncer := &fakeSyncer{}
	s := New(context.Background(), syncer)
	require.NoError(t, s.Register("* * * * * *", []string{"AAPL"}))

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return len(syncer.Calls()) > 0 }, 3*time.Second, 50*time.Millisecond)
}
