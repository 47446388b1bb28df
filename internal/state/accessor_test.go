package state

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuzic/webreq-sniffer-sub000/internal/logger"
	"github.com/cuzic/webreq-sniffer-sub000/internal/storage"
	"github.com/cuzic/webreq-sniffer-sub000/pkg/model"
)

// memKV 带读计数的内存存储，用于验证缓存行为
type memKV struct {
	data map[string][]byte
	gets int
}

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.gets++
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

// fakeClock 可手动推进的时钟
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestAccessor(t *testing.T) (*Accessor, *memKV, *fakeClock) {
	t.Helper()
	kv := newMemKV()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	acc := New(kv, 5*time.Second, clock.Now, logger.NewNop())
	require.NoError(t, acc.EnsureDefaults(context.Background()))
	return acc, kv, clock
}

func TestGetSettingsUsesCacheWithinTTL(t *testing.T) {
	acc, kv, clock := newTestAccessor(t)
	ctx := context.Background()

	_, err := acc.GetSettings(ctx, false)
	require.NoError(t, err)
	reads := kv.gets

	// 缓存有效期内不访问存储
	_, err = acc.GetSettings(ctx, false)
	require.NoError(t, err)
	require.Equal(t, reads, kv.gets)

	// 过期后重新读取
	clock.Advance(6 * time.Second)
	_, err = acc.GetSettings(ctx, false)
	require.NoError(t, err)
	require.Greater(t, kv.gets, reads)
}

func TestGetSettingsForceRefreshBypassesCache(t *testing.T) {
	acc, kv, _ := newTestAccessor(t)
	ctx := context.Background()

	_, err := acc.GetSettings(ctx, false)
	require.NoError(t, err)
	reads := kv.gets

	_, err = acc.GetSettings(ctx, true)
	require.NoError(t, err)
	require.Greater(t, kv.gets, reads)
}

func TestGetReturnsIndependentCopy(t *testing.T) {
	acc, _, _ := newTestAccessor(t)
	ctx := context.Background()

	s1, err := acc.GetSettings(ctx, false)
	require.NoError(t, err)
	s1.DenyList = append(s1.DenyList, "mutated")
	s1.MaxEntries = -999

	s2, err := acc.GetSettings(ctx, false)
	require.NoError(t, err)
	require.Empty(t, s2.DenyList)
	require.Equal(t, model.DefaultSettings().MaxEntries, s2.MaxEntries)
}

func TestCaptureStateEntriesCopied(t *testing.T) {
	acc, _, _ := newTestAccessor(t)
	ctx := context.Background()

	entries := []model.LogEntry{{
		ID: "e1", RequestID: "r1", URL: "https://x.com/v", Method: "GET",
		DedupeKey: "k1", Headers: model.NewHeader(map[string]string{"Referer": "https://x.com"}),
	}}
	_, err := acc.UpdateCaptureState(ctx, model.CapturePatch{Entries: &entries})
	require.NoError(t, err)

	cs1, err := acc.GetCaptureState(ctx, false)
	require.NoError(t, err)
	cs1.Entries[0].URL = "https://mutated"
	cs1.Entries[0].Headers.Set("Referer", "https://mutated")

	cs2, err := acc.GetCaptureState(ctx, false)
	require.NoError(t, err)
	require.Equal(t, "https://x.com/v", cs2.Entries[0].URL)
	require.Equal(t, "https://x.com", cs2.Entries[0].Headers.Get("Referer"))
}

func TestUpdateSettingsRoundTrip(t *testing.T) {
	acc, _, _ := newTestAccessor(t)
	ctx := context.Background()

	before, err := acc.GetSettings(ctx, false)
	require.NoError(t, err)

	max := 10
	deny := []string{"ads."}
	updated, err := acc.UpdateSettings(ctx, model.SettingsPatch{MaxEntries: &max, DenyList: &deny})
	require.NoError(t, err)
	require.Equal(t, 10, updated.MaxEntries)
	require.Equal(t, deny, updated.DenyList)
	// 未更新的字段保持原值
	require.Equal(t, before.HlsMpdMode, updated.HlsMpdMode)
	require.Equal(t, before.AllowList, updated.AllowList)
}

func TestUpdateRefreshesCacheWithPostWriteValue(t *testing.T) {
	acc, kv, _ := newTestAccessor(t)
	ctx := context.Background()

	// 先填充缓存
	_, err := acc.GetSettings(ctx, false)
	require.NoError(t, err)

	max := 10
	_, err = acc.UpdateSettings(ctx, model.SettingsPatch{MaxEntries: &max})
	require.NoError(t, err)

	// TTL 窗口内、不强制刷新，也必须拿到更新后的值而不是旧缓存
	reads := kv.gets
	s, err := acc.GetSettings(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 10, s.MaxEntries)
	require.Equal(t, reads, kv.gets)
}

func TestInvalidateClearsCache(t *testing.T) {
	acc, kv, _ := newTestAccessor(t)
	ctx := context.Background()

	_, err := acc.GetSettings(ctx, false)
	require.NoError(t, err)
	_, err = acc.GetCaptureState(ctx, false)
	require.NoError(t, err)

	acc.Invalidate()
	reads := kv.gets
	_, err = acc.GetSettings(ctx, false)
	require.NoError(t, err)
	_, err = acc.GetCaptureState(ctx, false)
	require.NoError(t, err)
	require.Equal(t, reads+2, kv.gets)
}

func TestSetSettingsReplacesWhole(t *testing.T) {
	acc, _, _ := newTestAccessor(t)
	ctx := context.Background()

	s := model.DefaultSettings()
	s.MaxEntries = 3
	s.SimpleFilters = []string{".m3u8"}
	require.NoError(t, acc.SetSettings(ctx, s))

	got, err := acc.GetSettings(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 3, got.MaxEntries)
	require.Equal(t, []string{".m3u8"}, got.SimpleFilters)
}
