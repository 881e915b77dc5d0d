package transcode

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"clipstream/internal/config"
)

// Runner executes an external tool to completion.
type Runner interface {
	Run(ctx context.Context, binary string, args []string) error
}

// ExecRunner runs tools via os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, binary string, args []string) error {
	cmd := exec.CommandContext(ctx, binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w: %s", filepath.Base(binary), err, tail(string(output), 512))
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// renditionArgs builds one ffmpeg invocation producing a single quality
// level's HLS playlist and segments inside its own subdirectory.
func renditionArgs(input, outputDir string, rendition config.Rendition, segmentSeconds int) []string {
	scale := fmt.Sprintf(
		"scale=w=%d:h=%d:force_original_aspect_ratio=decrease,pad=w=%d:h=%d:x=(ow-iw)/2:y=(oh-ih)/2",
		rendition.Width, rendition.Height, rendition.Width, rendition.Height)
	return []string{
		"-y",
		"-i", input,
		"-vf", scale,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-b:v", rendition.VideoBitrate,
		"-maxrate", rendition.VideoBitrate,
		"-bufsize", rendition.VideoBitrate,
		"-c:a", "aac",
		"-b:a", rendition.AudioBitrate,
		"-f", "hls",
		"-hls_time", strconv.Itoa(segmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", filepath.Join(outputDir, "segment_%05d.ts"),
		filepath.Join(outputDir, "playlist.m3u8"),
	}
}

// thumbnailArgs builds the ffmpeg invocation extracting one poster frame.
func thumbnailArgs(input, output string) []string {
	return []string{
		"-y",
		"-ss", "1",
		"-i", input,
		"-frames:v", "1",
		"-q:v", "3",
		output,
	}
}

// writeMasterPlaylist emits the top-level HLS playlist referencing every
// rendition's subdirectory playlist.
func writeMasterPlaylist(outputDir string, renditions []config.Rendition) error {
	var builder strings.Builder
	builder.WriteString("#EXTM3U\n")
	builder.WriteString("#EXT-X-VERSION:3\n")

	for _, rendition := range renditions {
		bandwidth := bitrateBPS(rendition.VideoBitrate) + bitrateBPS(rendition.AudioBitrate)
		builder.WriteString(fmt.Sprintf(
			"#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%dx%d\n",
			bandwidth, rendition.Width, rendition.Height))
		builder.WriteString(rendition.Name + "/playlist.m3u8\n")
	}

	return os.WriteFile(filepath.Join(outputDir, "master.m3u8"), []byte(builder.String()), 0o644)
}

// bitrateBPS parses bitrates like "3000k" into bits per second.
func bitrateBPS(bitrate string) int {
	cleaned := strings.ToLower(strings.TrimSpace(bitrate))
	multiplier := 1
	switch {
	case strings.HasSuffix(cleaned, "k"):
		multiplier = 1000
		cleaned = strings.TrimSuffix(cleaned, "k")
	case strings.HasSuffix(cleaned, "m"):
		multiplier = 1000000
		cleaned = strings.TrimSuffix(cleaned, "m")
	}
	value, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0
	}
	return value * multiplier
}
