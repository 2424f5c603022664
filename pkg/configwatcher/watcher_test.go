package configwatcher

import (
	"comic_english_backend/internal/config"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `server:
  mode: debug
database:
  driver: sqlite
storage:
  type: minio
scoring:
  points_per_correct: %s
`

func writeConfig(t *testing.T, path, points string) {
	t.Helper()
	content := []byte(fmt.Sprintf(sample, points))
	require.NoError(t, os.WriteFile(path, content, 0644))
}

func TestWatchConfigReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "10")

	var points atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- WatchConfig(ctx, path, func(cfg *config.Config) {
			points.Store(int64(cfg.Scoring.PointsPerCorrect))
		})
	}()

	time.Sleep(300 * time.Millisecond)
	writeConfig(t, path, "25")

	assert.Eventually(t, func() bool { return points.Load() == 25 }, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}
