package filewatch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatch_CoalescesBurst(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "form.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	var calls int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 100*time.Millisecond, nil, func() { atomic.AddInt32(&calls, 1) })
	}()

	// 等待 watcher 就緒
	time.Sleep(100 * time.Millisecond)
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte(`{"n":1}`), 0o644))
	}

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, 3*time.Second, 20*time.Millisecond)

	// 其他檔案不觸發
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0o644))
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	cancel()
	assert.NoError(t, <-done)
}

func TestWatch_MissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "form.json"), 0, nil, func() {})
	assert.Error(t, err)
}
