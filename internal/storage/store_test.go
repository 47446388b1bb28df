package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/cuzic/webreq-sniffer-sub000/internal/logger"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.sqlite3")
	s, err := Open(dsn, "test_", logger.NewNop())
	require.NoError(t, err)
	return s
}

func TestGetMissingKey(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "settings")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSetGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "settings", []byte(`{"maxEntries":5}`)))
	b, err := s.Get(ctx, "settings")
	require.NoError(t, err)
	require.Equal(t, int64(5), gjson.GetBytes(b, "maxEntries").Int())

	// 覆盖写入
	require.NoError(t, s.Set(ctx, "settings", []byte(`{"maxEntries":9}`)))
	b, err = s.Get(ctx, "settings")
	require.NoError(t, err)
	require.Equal(t, int64(9), gjson.GetBytes(b, "maxEntries").Int())
}

func TestUpdateMergesTopLevelFields(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "settings", []byte(`{"maxEntries":5,"hlsMpdMode":"all","denyList":["a"]}`)))

	merged, err := s.Update(ctx, "settings", []byte(`{"maxEntries":10}`))
	require.NoError(t, err)
	require.Equal(t, int64(10), gjson.GetBytes(merged, "maxEntries").Int())
	// 未出现在 partial 中的字段保留原值
	require.Equal(t, "all", gjson.GetBytes(merged, "hlsMpdMode").String())
	require.Equal(t, "a", gjson.GetBytes(merged, "denyList.0").String())

	// 合并结果已持久化
	b, err := s.Get(ctx, "settings")
	require.NoError(t, err)
	require.Equal(t, string(merged), string(b))
}

func TestUpdateMissingKeyStartsEmpty(t *testing.T) {
	s := openTestStore(t)
	merged, err := s.Update(context.Background(), "logData", []byte(`{"isCapturing":true}`))
	require.NoError(t, err)
	require.True(t, gjson.GetBytes(merged, "isCapturing").Bool())
}

func TestUpdateRejectsInvalidJSON(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Update(context.Background(), "settings", []byte(`{broken`))
	require.Error(t, err)
}
