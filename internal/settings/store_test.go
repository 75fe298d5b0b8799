package settings

// ============================================================================
// Settings Store 測試檔案
// 職責：驗證預設值、原子性寫入、驗證拒絕、變更通知與檔案監看
// ============================================================================

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ChuLiYu/labelmaker/internal/validation"
	"github.com/ChuLiYu/labelmaker/pkg/types"
)

// ============================================================================
// 基礎功能測試
// ============================================================================

func TestOpen_MissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store, err := Open(path, nil)
	require.NoError(t, err)

	assert.Equal(t, Defaults(), store.Snapshot())
	assert.Equal(t, types.RenderSettings{HasBorder: false, FontSize: 12, Padding: 1.75, TextAnchor: types.AnchorMiddle}, store.RenderSettings())
	assert.False(t, store.AutosaveEnabled())
	assert.Equal(t, "labels.pdf", filepath.Base(store.LastSavePath()))
	assert.Equal(t, path, store.GetPath())

	// 只讀取不建立檔案
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestOpen_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"labelSettings":{"fontSize":20},"autosaveEnabled":true}`), 0o644))

	store, err := Open(path, nil)
	require.NoError(t, err)

	rs := store.RenderSettings()
	assert.Equal(t, 20.0, rs.FontSize)
	assert.Equal(t, 1.75, rs.Padding)
	assert.Equal(t, types.AnchorMiddle, rs.TextAnchor)
	assert.True(t, store.AutosaveEnabled())
	assert.Equal(t, Defaults().LastSavePath, store.LastSavePath())
}

func TestOpen_OutOfRangeLabelSettingsFallBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	content := `{"labelSettings":{"fontSize":99,"padding":-3,"textAnchor":"left"},"autosaveEnabled":true,"lastSavePath":"/tmp/kept.pdf"}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	store, err := Open(path, nil)
	require.NoError(t, err)

	assert.Equal(t, types.DefaultRenderSettings(), store.RenderSettings())
	assert.NoError(t, validation.ValidateRenderSettings(store.RenderSettings()))
	assert.True(t, store.AutosaveEnabled(), "other keys are kept")
	assert.Equal(t, "/tmp/kept.pdf", store.LastSavePath())
}

func TestOpen_Corrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, err := Open(path, nil)
	assert.ErrorIs(t, err, ErrCorruptedSettings)
}

func TestSetAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	store, err := Open(path, nil)
	require.NoError(t, err)

	rs := types.RenderSettings{HasBorder: true, FontSize: 9, Padding: 0, TextAnchor: types.AnchorEnd}
	require.NoError(t, store.SetRenderSettings(rs))
	require.NoError(t, store.SetAutosave(true))
	require.NoError(t, store.SetLastSavePath("/tmp/out.pdf"))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	assert.Equal(t, Data{LabelSettings: rs, AutosaveEnabled: true, LastSavePath: "/tmp/out.pdf"}, reopened.Snapshot())
}

func TestSetRenderSettings_RejectsOutOfRange(t *testing.T) {
	store := NewMemory(Defaults())

	testCases := []struct {
		name    string
		mutate  func(*types.RenderSettings)
		message string
	}{
		{"zero font", func(rs *types.RenderSettings) { rs.FontSize = 0 }, "Font size must be greater than 0"},
		{"huge font", func(rs *types.RenderSettings) { rs.FontSize = 31 }, "Max font size is 30"},
		{"negative padding", func(rs *types.RenderSettings) { rs.Padding = -1 }, "Padding can't be negative"},
		{"huge padding", func(rs *types.RenderSettings) { rs.Padding = 4.5 }, "Max padding is 4"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rs := types.DefaultRenderSettings()
			tc.mutate(&rs)

			err := store.SetRenderSettings(rs)
			require.Error(t, err)
			var verr *validation.Error
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Error(), tc.message)
			assert.Equal(t, types.DefaultRenderSettings(), store.RenderSettings())
		})
	}
}

// ============================================================================
// 變更通知測試
// ============================================================================

func TestOnChange(t *testing.T) {
	store := NewMemory(Defaults())

	var got []Change
	unsubscribe := store.OnChange(func(c Change) { got = append(got, c) })

	require.NoError(t, store.SetAutosave(true))
	require.NoError(t, store.SetAutosave(true)) // 相同值不通知
	require.NoError(t, store.SetLastSavePath("/tmp/a.pdf"))

	require.Len(t, got, 2)
	assert.Equal(t, KeyAutosaveEnabled, got[0].Key)
	assert.True(t, got[0].Data.AutosaveEnabled)
	assert.Equal(t, KeyLastSavePath, got[1].Key)
	assert.Equal(t, "/tmp/a.pdf", got[1].Data.LastSavePath)

	unsubscribe()
	require.NoError(t, store.SetAutosave(false))
	assert.Len(t, got, 2)
}

func TestConcurrentAccess(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "settings.json"), nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			rs := types.DefaultRenderSettings()
			rs.FontSize = float64(10 + i)
			assert.NoError(t, store.SetRenderSettings(rs))
		}(i)
		go func() {
			defer wg.Done()
			_ = store.RenderSettings()
		}()
	}
	wg.Wait()

	fs := store.RenderSettings().FontSize
	assert.True(t, fs >= 10 && fs < 20)
}

// ============================================================================
// 重新載入與監看
// ============================================================================

func TestReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store, err := Open(path, nil)
	require.NoError(t, err)

	var keys []Key
	store.OnChange(func(c Change) { keys = append(keys, c.Key) })

	require.NoError(t, os.WriteFile(path, []byte(`{"labelSettings":{"fontSize":14,"padding":1,"textAnchor":"start"},"autosaveEnabled":false,"lastSavePath":"/x.pdf"}`), 0o644))
	require.NoError(t, store.Reload())

	assert.Equal(t, []Key{KeyLabelSettings, KeyLastSavePath}, keys)
	assert.Equal(t, 14.0, store.RenderSettings().FontSize)

	// 不合法的外部修改不會覆蓋記憶體中的值
	require.NoError(t, os.WriteFile(path, []byte(`{"labelSettings":{"fontSize":99}}`), 0o644))
	assert.Error(t, store.Reload())
	assert.Equal(t, 14.0, store.RenderSettings().FontSize)
}

func TestWatch_ReloadsOnExternalWrite(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "settings.json")
	store, err := Open(path, nil)
	require.NoError(t, err)

	changed := make(chan Change, 4)
	store.OnChange(func(c Change) { changed <- c })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(`{"autosaveEnabled":true}`), 0o644))

	select {
	case c := <-changed:
		assert.Equal(t, KeyAutosaveEnabled, c.Key)
		assert.True(t, c.Data.AutosaveEnabled)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not reload settings")
	}

	cancel()
	assert.NoError(t, <-done)
}
