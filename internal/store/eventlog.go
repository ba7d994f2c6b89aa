package store

import (
	"context"
	"sync"

	"saykit-agent/internal/model"
)

// EventLog 按会话保存最近投递的音频序列
type EventLog interface {
	Append(ctx context.Context, posted model.PostedSequence) error
	// Recent 最近 limit 条，按投递时间从旧到新
	Recent(ctx context.Context, sessionID string, limit int) ([]model.PostedSequence, error)
	Delete(ctx context.Context, sessionID string) error
}

const defaultCapacity = 100

// MemoryLog 进程内事件日志，每个会话保留最近 capacity 条。未配置 Redis 时使用
type MemoryLog struct {
	mu       sync.RWMutex
	capacity int
	sessions map[string][]model.PostedSequence
}

func NewMemoryLog(capacity int) *MemoryLog {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &MemoryLog{capacity: capacity, sessions: make(map[string][]model.PostedSequence)}
}

func (l *MemoryLog) Append(_ context.Context, posted model.PostedSequence) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	events := append(l.sessions[posted.SessionID], posted)
	if len(events) > l.capacity {
		events = append([]model.PostedSequence(nil), events[len(events)-l.capacity:]...)
	}
	l.sessions[posted.SessionID] = events
	return nil
}

func (l *MemoryLog) Recent(_ context.Context, sessionID string, limit int) ([]model.PostedSequence, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	events := l.sessions[sessionID]
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return append([]model.PostedSequence(nil), events...), nil
}

func (l *MemoryLog) Delete(_ context.Context, sessionID string) error {
	l.mu.Lock()
	delete(l.sessions, sessionID)
	l.mu.Unlock()
	return nil
}
