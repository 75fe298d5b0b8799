package settings

// ============================================================================
// 職責說明：
// 1. 持久化使用者設定（labelSettings / autosaveEnabled / lastSavePath）
// 2. 使用原子性寫入（temp file + rename）防止損壞
// 3. 缺少的鍵使用預設值補齊
// 4. 設定變更時通知訂閱者（controller、events）
// 5. 監看設定檔，外部修改後重新載入
// ============================================================================

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/ChuLiYu/labelmaker/internal/filewatch"
	"github.com/ChuLiYu/labelmaker/internal/prompt"
	"github.com/ChuLiYu/labelmaker/internal/validation"
	"github.com/ChuLiYu/labelmaker/pkg/types"
)

// ============================================================================
// 錯誤定義
// ============================================================================

var (
	ErrCorruptedSettings = errors.New("settings file is corrupted")
)

// ============================================================================
// 資料結構定義
// ============================================================================

// Key 設定鍵名稱（與設定檔 JSON 鍵相同）
type Key string

const (
	KeyLabelSettings   Key = "labelSettings"
	KeyAutosaveEnabled Key = "autosaveEnabled"
	KeyLastSavePath    Key = "lastSavePath"
)

// Data 設定檔完整內容
type Data struct {
	LabelSettings   types.RenderSettings `json:"labelSettings"`
	AutosaveEnabled bool                 `json:"autosaveEnabled"`
	LastSavePath    string               `json:"lastSavePath"`
}

// Defaults 回傳預設設定
func Defaults() Data {
	return Data{
		LabelSettings:   types.DefaultRenderSettings(),
		AutosaveEnabled: false,
		LastSavePath:    prompt.DefaultSavePath(),
	}
}

// Change 一次設定變更
type Change struct {
	Key  Key
	Data Data // 變更後的完整設定
}

// Store 設定儲存（程序內共享，讀寫皆以鎖保護）
type Store struct {
	path   string // 空字串表示只存在記憶體
	logger *zap.Logger

	mu   sync.RWMutex
	data Data

	subMu     sync.Mutex
	nextSubID int
	subs      map[int]func(Change)
}

// ============================================================================
// 核心方法實作
// ============================================================================

// Open 載入設定檔；檔案不存在時使用預設值（首次啟動）
//
// 超出範圍的 labelSettings 不會被採用，改用預設外觀設定（其他鍵保留）
func Open(path string, logger *zap.Logger) (*Store, error) {
	s := newStore(path, logger)
	if path == "" {
		return s, nil
	}

	data, err := s.load()
	if err != nil {
		return nil, err
	}
	if verr := validation.ValidateRenderSettings(data.LabelSettings); verr != nil {
		s.logger.Warn("stored label settings rejected, using defaults",
			zap.String("path", path), zap.Error(verr))
		data.LabelSettings = types.DefaultRenderSettings()
	}
	s.data = data
	return s, nil
}

// NewMemory 建立不寫入檔案的 Store
func NewMemory(initial Data) *Store {
	s := newStore("", nil)
	s.data = initial
	return s
}

func newStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:   path,
		logger: logger.Named("settings"),
		data:   Defaults(),
		subs:   make(map[int]func(Change)),
	}
}

// load 讀取設定檔，缺少的鍵保留預設值
func (s *Store) load() (Data, error) {
	data := Defaults()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return data, nil
		}
		return data, fmt.Errorf("failed to read settings: %w", err)
	}

	if err := json.Unmarshal(raw, &data); err != nil {
		return Defaults(), fmt.Errorf("%w: %v", ErrCorruptedSettings, err)
	}
	return data, nil
}

// persist 原子性寫入：先寫 .tmp 再 rename
func (s *Store) persist(data Data) error {
	if s.path == "" {
		return nil
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings dir: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write temp settings: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename settings: %w", err)
	}
	return nil
}

// update 在鎖內套用修改並持久化；寫入失敗時保留舊值
func (s *Store) update(key Key, apply func(*Data)) error {
	s.mu.Lock()
	next := s.data
	apply(&next)
	if next == s.data {
		s.mu.Unlock()
		return nil
	}
	if err := s.persist(next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.data = next
	s.mu.Unlock()

	s.logger.Debug("settings updated", zap.String("key", string(key)))
	s.notify(Change{Key: key, Data: next})
	return nil
}

// ============================================================================
// 讀取
// ============================================================================

// Snapshot 回傳目前設定的副本
func (s *Store) Snapshot() Data {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// RenderSettings 目前的外觀設定
func (s *Store) RenderSettings() types.RenderSettings {
	return s.Snapshot().LabelSettings
}

// AutosaveEnabled 是否記住儲存路徑
func (s *Store) AutosaveEnabled() bool {
	return s.Snapshot().AutosaveEnabled
}

// LastSavePath 上次選擇的儲存路徑
func (s *Store) LastSavePath() string {
	return s.Snapshot().LastSavePath
}

// GetPath 取得設定檔路徑
func (s *Store) GetPath() string {
	return s.path
}

// ============================================================================
// 寫入
// ============================================================================

// SetRenderSettings 驗證後儲存外觀設定；驗證失敗時不修改
func (s *Store) SetRenderSettings(rs types.RenderSettings) error {
	if err := validation.ValidateRenderSettings(rs); err != nil {
		return err
	}
	return s.update(KeyLabelSettings, func(d *Data) { d.LabelSettings = rs })
}

// SetAutosave 開關自動儲存
func (s *Store) SetAutosave(enabled bool) error {
	return s.update(KeyAutosaveEnabled, func(d *Data) { d.AutosaveEnabled = enabled })
}

// SetLastSavePath 記錄儲存路徑
func (s *Store) SetLastSavePath(path string) error {
	return s.update(KeyLastSavePath, func(d *Data) { d.LastSavePath = path })
}

// Reload 重新讀取設定檔，對每個改變的鍵發出通知
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}

	s.mu.Lock()
	data, err := s.load()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if verr := validation.ValidateRenderSettings(data.LabelSettings); verr != nil {
		s.mu.Unlock()
		return fmt.Errorf("reloaded settings rejected: %w", verr)
	}
	prev := s.data
	s.data = data
	s.mu.Unlock()

	var changes []Change
	if prev.LabelSettings != data.LabelSettings {
		changes = append(changes, Change{Key: KeyLabelSettings, Data: data})
	}
	if prev.AutosaveEnabled != data.AutosaveEnabled {
		changes = append(changes, Change{Key: KeyAutosaveEnabled, Data: data})
	}
	if prev.LastSavePath != data.LastSavePath {
		changes = append(changes, Change{Key: KeyLastSavePath, Data: data})
	}
	for _, c := range changes {
		s.logger.Info("settings reloaded", zap.String("key", string(c.Key)))
		s.notify(c)
	}
	return nil
}

// ============================================================================
// 變更通知
// ============================================================================

// OnChange 註冊變更回呼，回傳取消註冊函數
//
// 回呼在寫入者的 goroutine 中同步執行，不可再呼叫 Set* 方法
func (s *Store) OnChange(fn func(Change)) func() {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(c Change) {
	s.subMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// Watch 監看設定檔，外部修改後自動 Reload；阻塞直到 ctx 結束
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings dir: %w", err)
	}

	return filewatch.Watch(ctx, s.path, filewatch.DefaultDebounce, s.logger, func() {
		if err := s.Reload(); err != nil {
			s.logger.Warn("settings reload failed", zap.Error(err))
		}
	})
}

// DefaultPath 回傳 <user config dir>/labelmaker/settings.json
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "labelmaker", "settings.json")
}
