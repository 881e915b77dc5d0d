package stage

import (
	"os"
	"os/exec"
	"path/filepath"

	"clipstream/internal/services"
)

// Workdir creates (or reuses) the per-video scratch directory under the
// staging root. Stage executors download sources and build artifacts here.
func Workdir(stagingDir, videoID, stageName string) (string, error) {
	dir := filepath.Join(stagingDir, videoID, stageName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", services.Wrap(
			services.ErrConfiguration, stageName, "create workdir",
			"Unable to create staging directory; check paths.staging_dir permissions", err)
	}
	return dir, nil
}

// CleanupWorkdir removes a video's entire scratch tree. Called after the
// final stage and on terminal failures.
func CleanupWorkdir(stagingDir, videoID string) error {
	if stagingDir == "" || videoID == "" {
		return nil
	}
	return os.RemoveAll(filepath.Join(stagingDir, videoID))
}

// BinaryReady reports whether an external tool is invocable, for stage
// health checks.
func BinaryReady(binary string) bool {
	if binary == "" {
		return false
	}
	if filepath.IsAbs(binary) {
		info, err := os.Stat(binary)
		return err == nil && !info.IsDir()
	}
	_, err := exec.LookPath(binary)
	return err == nil
}
