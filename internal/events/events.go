// Package events is the one-way notification bus from orchestration to the
// user-facing layer. Publishers never wait for subscribers.
package events

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Type 事件種類
type Type string

const (
	GenerationStarted   Type = "generation-started"
	RegenerateRequested Type = "regenerate-requested"
	AutosaveChanged     Type = "autosave-changed"
)

// Event 一則通知；Autosave 只在 AutosaveChanged 時有意義
type Event struct {
	Type     Type
	Autosave bool
	At       time.Time
}

// DefaultBuffer 每個訂閱者的通道緩衝
const DefaultBuffer = 16

// Bus 廣播事件給所有訂閱者；訂閱者來不及讀取時丟棄事件
type Bus struct {
	logger *zap.Logger

	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
	closed bool
}

// NewBus 建立事件匯流排
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{logger: logger.Named("events"), subs: make(map[int]chan Event)}
}

// Subscribe 回傳事件通道與取消訂閱函數；取消後通道會被關閉
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish 發送事件，不阻塞
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.logger.Warn("subscriber lagging, event dropped",
				zap.Int("subscriber", id),
				zap.String("type", string(e.Type)),
			)
		}
	}
}

// GenerationStarted 通知已開始產生 PDF
func (b *Bus) GenerationStarted() { b.Publish(Event{Type: GenerationStarted}) }

// RegenerateRequested 要求以目前表單重新產生
func (b *Bus) RegenerateRequested() { b.Publish(Event{Type: RegenerateRequested}) }

// AutosaveChanged 通知自動儲存開關改變
func (b *Bus) AutosaveChanged(enabled bool) {
	b.Publish(Event{Type: AutosaveChanged, Autosave: enabled})
}

// Close 關閉所有訂閱者通道
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
