package audio

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"saykit-agent/internal/model"
)

// 内置音轨
const (
	TrackMain         = "main"
	TrackVoiceRequest = "voice_request"

	PriorityMain         = 0
	PriorityVoiceRequest = 10
)

// Output 序列的最终出口（日志、消息总线、事件日志）
type Output interface {
	Deliver(ctx context.Context, posted model.PostedSequence) error
}

// OutputFunc 函数形式的 Output
type OutputFunc func(ctx context.Context, posted model.PostedSequence) error

func (f OutputFunc) Deliver(ctx context.Context, posted model.PostedSequence) error {
	return f(ctx, posted)
}

type pending struct {
	ctx   context.Context
	track *Track
	seq   model.AudioEventSequence
}

// Coordinator 协调一个会话的多条音轨：
// 高优先级音轨占用焦点时，低优先级音轨的序列延后，焦点释放后按投递顺序补发
type Coordinator struct {
	mu        sync.Mutex
	sessionID string
	outputs   []Output
	tracks    map[string]*Track
	holds     map[*Track]int
	suspended bool
	deferred  []pending
	onPosted  func(track string)
	log       *logrus.Entry
	now       func() time.Time
}

// CoordinatorOption 协调器可选配置
type CoordinatorOption func(*Coordinator)

func WithOutputs(outputs ...Output) CoordinatorOption {
	return func(c *Coordinator) { c.outputs = append(c.outputs, outputs...) }
}

// WithPostedHook 每投递一个序列回调一次，用于指标
func WithPostedHook(fn func(track string)) CoordinatorOption {
	return func(c *Coordinator) { c.onPosted = fn }
}

// NewCoordinator 创建协调器并注册 main 与 voice_request 两条音轨
func NewCoordinator(sessionID string, log *logrus.Entry, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		sessionID: sessionID,
		tracks:    make(map[string]*Track),
		holds:     make(map[*Track]int),
		log:       log.WithField("component", "audio"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Track(TrackMain, PriorityMain)
	c.Track(TrackVoiceRequest, PriorityVoiceRequest)
	return c
}

// Track 获取或创建音轨；已存在时忽略 priority
func (c *Coordinator) Track(name string, priority int) *Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tracks[name]; ok {
		return t
	}
	t := &Track{name: name, priority: priority, coord: c}
	c.tracks[name] = t
	return t
}

// Main 主音轨
func (c *Coordinator) Main() *Track { return c.Track(TrackMain, PriorityMain) }

// VoiceRequest 语音请求音轨
func (c *Coordinator) VoiceRequest() *Track { return c.Track(TrackVoiceRequest, PriorityVoiceRequest) }

// Suspend 暂停全部音轨，之后的序列都延后
func (c *Coordinator) Suspend() {
	c.mu.Lock()
	c.suspended = true
	c.mu.Unlock()
}

// Resume 恢复并补发可以播放的序列
func (c *Coordinator) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.suspended = false
	c.flushLocked()
}

// Deferred 当前延后的序列数
func (c *Coordinator) Deferred() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.deferred)
}

func (c *Coordinator) post(ctx context.Context, t *Track, seq model.AudioEventSequence) {
	if seq.IsEmpty() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.blockedLocked(t) {
		c.deferred = append(c.deferred, pending{ctx: context.WithoutCancel(ctx), track: t, seq: seq})
		c.log.WithFields(logrus.Fields{"track": t.name, "deferred": len(c.deferred)}).Debug("sequence deferred")
		return
	}
	c.deliverLocked(ctx, t, seq)
}

func (c *Coordinator) hold(t *Track) {
	c.mu.Lock()
	c.holds[t]++
	c.mu.Unlock()
}

func (c *Coordinator) release(t *Track) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.holds[t] == 0 {
		return
	}
	c.holds[t]--
	if c.holds[t] == 0 {
		delete(c.holds, t)
		c.flushLocked()
	}
}

// blockedLocked 暂停中，或有更高优先级音轨占用焦点
func (c *Coordinator) blockedLocked(t *Track) bool {
	if c.suspended {
		return true
	}
	for holder := range c.holds {
		if holder != t && holder.priority > t.priority {
			return true
		}
	}
	return false
}

func (c *Coordinator) flushLocked() {
	kept := c.deferred[:0]
	var ready []pending
	for _, p := range c.deferred {
		if c.blockedLocked(p.track) {
			kept = append(kept, p)
			continue
		}
		ready = append(ready, p)
	}
	c.deferred = kept
	for _, p := range ready {
		c.deliverLocked(p.ctx, p.track, p.seq)
	}
}

func (c *Coordinator) deliverLocked(ctx context.Context, t *Track, seq model.AudioEventSequence) {
	posted := model.PostedSequence{
		SessionID: c.sessionID,
		Track:     t.name,
		Sequence:  seq,
		PostedAt:  c.now(),
	}
	for _, out := range c.outputs {
		if err := out.Deliver(ctx, posted); err != nil {
			c.log.WithField("track", t.name).WithError(err).Warn("deliver audio sequence failed")
		}
	}
	if c.onPosted != nil {
		c.onPosted(t.name)
	}
}

// Track 一条音轨。实现 topic.Sink 与 request.Voice
type Track struct {
	name     string
	priority int
	coord    *Coordinator
}

func (t *Track) Name() string  { return t.name }
func (t *Track) Priority() int { return t.priority }

// Post 投递序列，被更高优先级音轨占用焦点时延后
func (t *Track) Post(ctx context.Context, seq model.AudioEventSequence) {
	t.coord.post(ctx, t, seq)
}

// Hold 占用焦点，可重入
func (t *Track) Hold() { t.coord.hold(t) }

// Release 释放一次焦点，全部释放后补发被延后的序列
func (t *Track) Release() { t.coord.release(t) }
