package storage

import "testing"

func TestObjectKeyLayout(t *testing.T) {
	const id = "a1b2c3d4"

	cases := []struct {
		name string
		got  string
		want string
	}{
		{"raw upload", RawUploadKey(id), "raw-uploads/a1b2c3d4"},
		{"processed prefix", ProcessedPrefix(id), "processed-videos/a1b2c3d4"},
		{"master manifest", MasterManifestKey(id), "processed-videos/a1b2c3d4/master.m3u8"},
		{"rendition manifest", RenditionManifestKey(id, "720p"), "processed-videos/a1b2c3d4/720p/playlist.m3u8"},
		{"thumbnail", ThumbnailKey(id), "thumbnails/a1b2c3d4.jpg"},
		{"transcript", TranscriptKey(id), "transcripts/a1b2c3d4.json"},
		{"embedding", EmbeddingKey(id), "embeddings/a1b2c3d4.json"},
	}

	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, tc.got, tc.want)
		}
	}
}

func TestContentTypeFor(t *testing.T) {
	if got := contentTypeFor("segment_00001.ts"); got != "video/mp2t" {
		t.Errorf("ts content type: got %q", got)
	}
	if got := contentTypeFor("master.M3U8"); got != "application/vnd.apple.mpegurl" {
		t.Errorf("playlist content type: got %q", got)
	}
	if got := contentTypeFor("clip.bin"); got != "" {
		t.Errorf("unknown extension should have empty content type, got %q", got)
	}
}
