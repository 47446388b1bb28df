package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuzic/webreq-sniffer-sub000/internal/logger"
	"github.com/cuzic/webreq-sniffer-sub000/internal/state"
	"github.com/cuzic/webreq-sniffer-sub000/internal/storage"
	"github.com/cuzic/webreq-sniffer-sub000/pkg/model"
)

// memKV 内存存储，failGets 为真时 Get 返回错误
type memKV struct {
	data     map[string][]byte
	failGets bool
}

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	if m.failGets {
		return nil, errors.New("存储不可用")
	}
	b, ok := m.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return b, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte) error {
	m.data[key] = append([]byte(nil), value...)
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

func newTestAccessor(t *testing.T) (*state.Accessor, *memKV) {
	t.Helper()
	kv := newMemKV()
	acc := state.New(kv, time.Minute, nil, logger.NewNop())
	require.NoError(t, acc.EnsureDefaults(context.Background()))
	return acc, kv
}

func testEvent(requestID, url string) model.RawRequestEvent {
	return model.RawRequestEvent{
		RequestID: requestID,
		URL:       url,
		Method:    "GET",
		Type:      "xhr",
		TabID:     1,
		FrameID:   0,
		TimeStamp: 1700000000000,
	}
}

func mustCommit(t *testing.T, j *Journal, url string, max int) {
	t.Helper()
	entry, err := NewEntry(testEvent("r-"+url, url), nil, nil)
	require.NoError(t, err)
	res, err := j.Commit(context.Background(), entry, max)
	require.NoError(t, err)
	require.Equal(t, CommitAppended, res)
}
