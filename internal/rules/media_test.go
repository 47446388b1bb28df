package rules

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsSegmentURL(t *testing.T) {
	segments := []string{
		"https://cdn.example.com/video/seg001.ts",
		"https://cdn.example.com/video/chunk_042.m4s?token=abc",
		"https://cdn.example.com/stream/fragment-7.mp4",
		"https://cdn.example.com/media-12.cmfv",
		"https://cdn.example.com/audio_3.m4f#t=0",
	}
	for _, u := range segments {
		require.True(t, IsSegmentURL(u), u)
	}

	others := []string{
		"https://cdn.example.com/master.m3u8",
		"https://example.com/page.html",
		"https://example.com/segments/index.html",
	}
	for _, u := range others {
		require.False(t, IsSegmentURL(u), u)
	}
}

func TestIsPlaylistURL(t *testing.T) {
	playlists := []string{
		"https://cdn.example.com/master.m3u8",
		"https://cdn.example.com/stream.mpd?sig=1",
		"https://cdn.example.com/hls/playlist/720p",
		"https://cdn.example.com/manifest.json",
	}
	for _, u := range playlists {
		require.True(t, IsPlaylistURL(u), u)
	}

	require.False(t, IsPlaylistURL("https://cdn.example.com/video/seg001.ts"))
	require.False(t, IsPlaylistURL("https://example.com/app.js"))
}
