package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"saykit-agent/internal/metrics"
	"saykit-agent/internal/model"
	"saykit-agent/internal/service/topic"
)

// Builder 为新会话构建根话题
type Builder func(sessionID string) (*topic.Topic, error)

// Hub 管理所有会话，空闲超过 ttl 的会话会被回收
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Manager
	build    Builder
	settings Settings
	opts     []Option
	ttl      time.Duration
	log      *logrus.Entry
}

// NewHub ttl <= 0 时不回收
func NewHub(build Builder, settings Settings, ttl time.Duration, log *logrus.Entry, opts ...Option) *Hub {
	return &Hub{
		sessions: make(map[string]*Manager),
		build:    build,
		settings: settings,
		opts:     opts,
		ttl:      ttl,
		log:      log.WithField("component", "hub"),
	}
}

// Create 新建会话
func (h *Hub) Create(_ context.Context) (*Manager, error) {
	id := uuid.NewString()
	root, err := h.build(id)
	if err != nil {
		return nil, fmt.Errorf("build topic tree: %w", err)
	}
	m := New(id, root, h.settings, h.log, h.opts...)
	h.mu.Lock()
	h.sessions[id] = m
	h.mu.Unlock()
	metrics.ActiveSessions.Inc()
	h.log.WithField("session_id", id).Info("session created")
	return m, nil
}

// Get 按 ID 取会话
func (h *Hub) Get(id string) (*Manager, error) {
	h.mu.RLock()
	m, ok := h.sessions[id]
	h.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrSessionNotFound, id)
	}
	return m, nil
}

// Delete 关闭并移除会话
func (h *Hub) Delete(ctx context.Context, id string) error {
	h.mu.Lock()
	m, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrSessionNotFound, id)
	}
	metrics.ActiveSessions.Dec()
	return m.Close(ctx)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Reap 回收在 now 时刻已空闲超过 ttl 的会话，返回回收数量
func (h *Hub) Reap(ctx context.Context, now time.Time) int {
	if h.ttl <= 0 {
		return 0
	}
	h.mu.RLock()
	var idle []string
	for id, m := range h.sessions {
		if now.Sub(m.LastActive()) > h.ttl {
			idle = append(idle, id)
		}
	}
	h.mu.RUnlock()

	n := 0
	for _, id := range idle {
		if err := h.Delete(ctx, id); err != nil {
			h.log.WithField("session_id", id).WithError(err).Warn("reap session failed")
			continue
		}
		n++
	}
	if n > 0 {
		h.log.WithField("reaped", n).Info("idle sessions reaped")
	}
	return n
}

// Run 定期回收空闲会话，直到 ctx 结束
func (h *Hub) Run(ctx context.Context) {
	if h.ttl <= 0 {
		return
	}
	interval := h.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.Reap(ctx, now)
		}
	}
}

// Close 关闭全部会话
func (h *Hub) Close(ctx context.Context) {
	h.mu.RLock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	for _, id := range ids {
		if err := h.Delete(ctx, id); err != nil {
			h.log.WithField("session_id", id).WithError(err).Warn("close session failed")
		}
	}
}
