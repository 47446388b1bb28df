package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuzic/webreq-sniffer-sub000/internal/logger"
	"github.com/cuzic/webreq-sniffer-sub000/internal/pipeline"
	"github.com/cuzic/webreq-sniffer-sub000/internal/rules"
	"github.com/cuzic/webreq-sniffer-sub000/internal/state"
	"github.com/cuzic/webreq-sniffer-sub000/internal/storage"
	"github.com/cuzic/webreq-sniffer-sub000/pkg/model"
)

type memKV struct {
	data map[string][]byte
}

func newMemKV() *memKV { return &memKV{data: map[string][]byte{}} }

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	b, ok := m.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return b, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte) error {
	m.data[key] = value
	return nil
}

func (m *memKV) Update(_ context.Context, key string, partial []byte) ([]byte, error) {
	current := map[string]json.RawMessage{}
	if b, ok := m.data[key]; ok {
		if err := json.Unmarshal(b, &current); err != nil {
			return nil, err
		}
	}
	patch := map[string]json.RawMessage{}
	if err := json.Unmarshal(partial, &patch); err != nil {
		return nil, err
	}
	for k, v := range patch {
		current[k] = v
	}
	merged, err := json.Marshal(current)
	if err != nil {
		return nil, err
	}
	m.data[key] = merged
	return merged, nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	acc := state.New(newMemKV(), time.Minute, nil, logger.NewNop())
	require.NoError(t, acc.EnsureDefaults(context.Background()))
	journal := pipeline.NewJournal(acc, logger.NewNop())
	chain := pipeline.NewChain(acc, rules.New(logger.NewNop()), journal, logger.NewNop())
	return New(acc, chain, journal, logger.NewNop())
}

func TestStartCaptureAllTabs(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.StartCapture(ctx, model.ScopeAllTabs, 42))

	st, err := svc.Status(ctx)
	require.NoError(t, err)
	require.True(t, st.IsCapturing)
	require.Equal(t, model.ScopeAllTabs, st.Scope)
	// all-tabs 范围下忽略传入的 tabID
	require.Equal(t, model.NoTabID, st.ActiveTabID)
}

func TestStartCaptureActiveTab(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.StartCapture(ctx, model.ScopeActiveTab, 7))

	st, err := svc.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, model.ScopeActiveTab, st.Scope)
	require.Equal(t, 7, st.ActiveTabID)
}

func TestStartCaptureValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.ErrorIs(t, svc.StartCapture(ctx, model.ScopeActiveTab, model.NoTabID), ErrInvalidArgument)
	require.ErrorIs(t, svc.StartCapture(ctx, model.CaptureScope("window"), 1), ErrInvalidArgument)
}

func TestStopCaptureKeepsEntries(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.StartCapture(ctx, model.ScopeAllTabs, model.NoTabID))

	outcome := svc.chain.Process(ctx, model.RawRequestEvent{
		RequestID: "r1",
		URL:       "https://example.com/a.m3u8",
		Method:    "GET",
		Type:      "xhr",
		TabID:     1,
	}, nil, nil)
	require.Equal(t, pipeline.OutcomeCommitted, outcome)

	require.NoError(t, svc.StopCapture(ctx))

	st, err := svc.Status(ctx)
	require.NoError(t, err)
	require.False(t, st.IsCapturing)
	require.Equal(t, 1, st.EntryCount)
}

func TestClearLog(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.StartCapture(ctx, model.ScopeAllTabs, model.NoTabID))
	svc.chain.Process(ctx, model.RawRequestEvent{
		RequestID: "r1", URL: "https://example.com/a", Method: "GET", Type: "xhr", TabID: 1,
	}, nil, nil)

	entries, err := svc.GetLog(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, svc.ClearLog(ctx))

	entries, err = svc.GetLog(ctx)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestUpdateSettingsPartial(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	max := 50
	updated, err := svc.UpdateSettings(ctx, model.SettingsPatch{MaxEntries: &max})
	require.NoError(t, err)
	require.Equal(t, 50, updated.MaxEntries)
	// 未补丁的字段保持默认
	require.Equal(t, model.HlsMpdAll, updated.HlsMpdMode)

	got, err := svc.GetSettings(ctx)
	require.NoError(t, err)
	require.Equal(t, 50, got.MaxEntries)
}
