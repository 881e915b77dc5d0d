// Package transcode runs the transcode stage: it renders the HLS rendition
// ladder with ffmpeg, writes the master playlist, extracts a poster frame,
// and uploads everything under the video's processed prefix.
package transcode
