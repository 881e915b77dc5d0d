package storage

import "fmt"

// Object key prefixes. Raw uploads are written by the upload service; all
// other prefixes are owned by this pipeline.
const (
	rawUploadsPrefix      = "raw-uploads"
	processedVideosPrefix = "processed-videos"
	thumbnailsPrefix      = "thumbnails"
	transcriptsPrefix     = "transcripts"
	embeddingsPrefix      = "embeddings"
)

// RawUploadKey returns the object key an upload service writes the original
// file under.
func RawUploadKey(videoID string) string {
	return fmt.Sprintf("%s/%s", rawUploadsPrefix, videoID)
}

// ProcessedPrefix returns the key prefix all HLS artifacts for a video live
// under.
func ProcessedPrefix(videoID string) string {
	return fmt.Sprintf("%s/%s", processedVideosPrefix, videoID)
}

// MasterManifestKey returns the key of the top-level HLS playlist.
func MasterManifestKey(videoID string) string {
	return fmt.Sprintf("%s/%s/master.m3u8", processedVideosPrefix, videoID)
}

// RenditionManifestKey returns the key of a single quality level's playlist.
func RenditionManifestKey(videoID, rendition string) string {
	return fmt.Sprintf("%s/%s/%s/playlist.m3u8", processedVideosPrefix, videoID, rendition)
}

// ThumbnailKey returns the key of a video's poster frame.
func ThumbnailKey(videoID string) string {
	return fmt.Sprintf("%s/%s.jpg", thumbnailsPrefix, videoID)
}

// TranscriptKey returns the key of a video's transcript document.
func TranscriptKey(videoID string) string {
	return fmt.Sprintf("%s/%s.json", transcriptsPrefix, videoID)
}

// EmbeddingKey returns the key of a video's exported embedding document.
func EmbeddingKey(videoID string) string {
	return fmt.Sprintf("%s/%s.json", embeddingsPrefix, videoID)
}
