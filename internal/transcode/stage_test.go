package transcode_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"clipstream/internal/logging"
	"clipstream/internal/queue"
	"clipstream/internal/services"
	"clipstream/internal/storage"
	"clipstream/internal/testsupport"
	"clipstream/internal/transcode"
)

// fakeRunner simulates ffmpeg by writing a file at the invocation's output
// path (always the final argument).
type fakeRunner struct {
	calls int
	err   error
}

func (r *fakeRunner) Run(ctx context.Context, binary string, args []string) error {
	r.calls++
	if r.err != nil {
		return r.err
	}
	output := args[len(args)-1]
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return err
	}
	return os.WriteFile(output, []byte("fake output"), 0o644)
}

func testVideo(id string) *queue.Video {
	return &queue.Video{
		ID:        id,
		SourceKey: storage.RawUploadKey(id),
		Status:    queue.StatusTranscoding,
	}
}

func TestExecuteRendersLadderAndUploads(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	objects := testsupport.NewObjectStore()
	runner := &fakeRunner{}
	ctx := context.Background()

	video := testVideo("vid-1")
	objects.Put(video.SourceKey, []byte("raw video bytes"))

	transcoder := transcode.NewTranscoderWithDependencies(cfg, objects, runner, logging.NewNop())
	if err := transcoder.Execute(ctx, video); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// One invocation per rendition plus the thumbnail.
	if want := len(cfg.Transcode.Renditions) + 1; runner.calls != want {
		t.Fatalf("expected %d ffmpeg calls, got %d", want, runner.calls)
	}

	if video.ManifestKey != storage.MasterManifestKey("vid-1") {
		t.Fatalf("manifest key not recorded: %q", video.ManifestKey)
	}
	if video.ThumbnailKey != storage.ThumbnailKey("vid-1") {
		t.Fatalf("thumbnail key not recorded: %q", video.ThumbnailKey)
	}

	keys := objects.Keys()
	sort.Strings(keys)
	wantKeys := []string{storage.MasterManifestKey("vid-1"), storage.ThumbnailKey("vid-1")}
	for _, want := range wantKeys {
		found := false
		for _, key := range keys {
			if key == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected key %s in %v", want, keys)
		}
	}

	master := string(objects.Get(storage.MasterManifestKey("vid-1")))
	if !strings.HasPrefix(master, "#EXTM3U") {
		t.Fatalf("master playlist malformed: %q", master)
	}
	for _, rendition := range cfg.Transcode.Renditions {
		if !strings.Contains(master, rendition.Name+"/playlist.m3u8") {
			t.Fatalf("master playlist missing rendition %s: %q", rendition.Name, master)
		}
	}

	// Staging tree is cleaned after a successful render.
	entries, err := os.ReadDir(filepath.Join(cfg.Paths.StagingDir, "vid-1"))
	if err == nil && len(entries) > 0 {
		t.Fatalf("staging workdir not cleaned: %v", entries)
	}
}

func TestExecuteSkipsWhenOutputsExist(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	objects := testsupport.NewObjectStore()
	runner := &fakeRunner{}

	video := testVideo("vid-replay")
	objects.Put(storage.MasterManifestKey(video.ID), []byte("#EXTM3U"))

	transcoder := transcode.NewTranscoderWithDependencies(cfg, objects, runner, logging.NewNop())
	if err := transcoder.Execute(context.Background(), video); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if runner.calls != 0 {
		t.Fatalf("re-delivered job must not re-render, got %d calls", runner.calls)
	}
	if video.ManifestKey == "" || video.ThumbnailKey == "" {
		t.Fatal("output keys must still be recorded on skip")
	}
}

func TestExecuteFFmpegFailureIsRetryable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	objects := testsupport.NewObjectStore()
	runner := &fakeRunner{err: errors.New("ffmpeg exited 1")}

	video := testVideo("vid-broken")
	objects.Put(video.SourceKey, []byte("raw"))

	transcoder := transcode.NewTranscoderWithDependencies(cfg, objects, runner, logging.NewNop())
	err := transcoder.Execute(context.Background(), video)
	if err == nil {
		t.Fatal("expected ffmpeg error")
	}
	if !services.IsRetryable(err) {
		t.Fatalf("tool failure must be retryable, got %v", err)
	}
}

func TestExecuteMissingSourceIsRetryable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	objects := testsupport.NewObjectStore()
	transcoder := transcode.NewTranscoderWithDependencies(cfg, objects, &fakeRunner{}, logging.NewNop())

	err := transcoder.Execute(context.Background(), testVideo("vid-missing"))
	if err == nil {
		t.Fatal("expected download error")
	}
	if !services.IsRetryable(err) {
		t.Fatalf("download failure must be retryable, got %v", err)
	}
}

func TestPrepareValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	transcoder := transcode.NewTranscoderWithDependencies(cfg, testsupport.NewObjectStore(), &fakeRunner{}, logging.NewNop())

	if err := transcoder.Prepare(context.Background(), &queue.Video{ID: "x"}); err == nil {
		t.Fatal("missing source key must fail validation")
	}

	cfg.Transcode.Renditions = nil
	err := transcoder.Prepare(context.Background(), testVideo("vid"))
	if err == nil {
		t.Fatal("empty rendition ladder must fail validation")
	}
	if services.IsRetryable(err) {
		t.Fatalf("configuration failure must not be retryable: %v", err)
	}
}
