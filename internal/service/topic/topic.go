package topic

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"saykit-agent/internal/model"
	"saykit-agent/internal/service/command"
)

// Interceptor 父话题改写子话题上报的事件序列后再向上转发。
// 返回空序列表示吞掉该序列
type Interceptor interface {
	Intercept(ctx context.Context, child *Topic, seq model.AudioEventSequence) model.AudioEventSequence
}

// InterceptorFunc 函数形式的 Interceptor
type InterceptorFunc func(ctx context.Context, child *Topic, seq model.AudioEventSequence) model.AudioEventSequence

func (f InterceptorFunc) Intercept(ctx context.Context, child *Topic, seq model.AudioEventSequence) model.AudioEventSequence {
	return f(ctx, child, seq)
}

// Preface 在子话题输出前加一句引导语，如 "Here's what I found."
func Preface(utterance string) Interceptor {
	return InterceptorFunc(func(_ context.Context, _ *Topic, seq model.AudioEventSequence) model.AudioEventSequence {
		return seq.Prepend(model.SpeechEvent(utterance))
	})
}

// Postscript 在子话题输出后追加一句
func Postscript(utterance string) Interceptor {
	return InterceptorFunc(func(_ context.Context, _ *Topic, seq model.AudioEventSequence) model.AudioEventSequence {
		return seq.Append(model.SpeechEvent(utterance))
	})
}

// Sink 根话题的事件出口（通常是 main 音轨）
type Sink interface {
	Post(ctx context.Context, seq model.AudioEventSequence)
}

// Topic 话题节点：拥有识别器与子话题。
// 子话题上报的事件只交给父节点，逐级向上，兄弟节点互不可见
type Topic struct {
	name    string
	catalog *command.Catalog

	mu          sync.RWMutex
	parent      *Topic
	children    []*Topic
	interceptor Interceptor
	sink        Sink
}

// Option 话题可选配置
type Option func(*Topic)

func WithInterceptor(i Interceptor) Option {
	return func(t *Topic) { t.interceptor = i }
}

func WithSink(s Sink) Option {
	return func(t *Topic) { t.sink = s }
}

func WithRecognizers(recs ...*command.Recognizer) Option {
	return func(t *Topic) {
		for _, r := range recs {
			t.catalog.AddRecognizer(r)
		}
	}
}

func New(name string, opts ...Option) *Topic {
	t := &Topic{name: name, catalog: command.NewCatalog()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Topic) Name() string { return t.name }

// Path 从根到本节点的名称路径
func (t *Topic) Path() string {
	var names []string
	for n := t; n != nil; n = n.Parent() {
		names = append(names, n.name)
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, "/")
}

func (t *Topic) Parent() *Topic {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.parent
}

// Subtopics 子话题快照
func (t *Topic) Subtopics() []*Topic {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*Topic(nil), t.children...)
}

// SetInterceptor 替换拦截器，nil 表示原样转发
func (t *Topic) SetInterceptor(i Interceptor) {
	t.mu.Lock()
	t.interceptor = i
	t.mu.Unlock()
}

// SetSink 设置根节点出口
func (t *Topic) SetSink(s Sink) {
	t.mu.Lock()
	t.sink = s
	t.mu.Unlock()
}

func (t *Topic) AddRecognizer(r *command.Recognizer) { t.catalog.AddRecognizer(r) }

func (t *Topic) RemoveRecognizer(r *command.Recognizer) bool { return t.catalog.RemoveRecognizer(r) }

// OwnRecognizers 本节点自己的识别器
func (t *Topic) OwnRecognizers() []*command.Recognizer { return t.catalog.Recognizers() }

// Recognizers 分发面：先本节点，再按加入顺序深度优先遍历子话题
func (t *Topic) Recognizers() []*command.Recognizer {
	out := t.catalog.Recognizers()
	for _, child := range t.Subtopics() {
		out = append(out, child.Recognizers()...)
	}
	return out
}

// AddSubtopic 加入子话题。子话题已有父节点或会形成环时返回 ErrInvalidState
func (t *Topic) AddSubtopic(child *Topic) error {
	if child == nil {
		return fmt.Errorf("%w: nil subtopic", model.ErrInvalidState)
	}
	for n := t; n != nil; n = n.Parent() {
		if n == child {
			return fmt.Errorf("%w: adding %q under %q would create a cycle", model.ErrInvalidState, child.name, t.name)
		}
	}
	child.mu.Lock()
	if child.parent != nil {
		owner := child.parent.name
		child.mu.Unlock()
		return fmt.Errorf("%w: topic %q already belongs to %q", model.ErrInvalidState, child.name, owner)
	}
	child.parent = t
	child.mu.Unlock()

	t.mu.Lock()
	t.children = append(t.children, child)
	t.mu.Unlock()
	return nil
}

// RemoveSubtopic 移除子话题，返回是否存在
func (t *Topic) RemoveSubtopic(child *Topic) bool {
	t.mu.Lock()
	found := false
	for i, c := range t.children {
		if c == child {
			t.children = append(t.children[:i:i], t.children[i+1:]...)
			found = true
			break
		}
	}
	t.mu.Unlock()
	if found {
		child.mu.Lock()
		child.parent = nil
		child.mu.Unlock()
	}
	return found
}

// RemoveAllSubtopics 移除全部子话题
func (t *Topic) RemoveAllSubtopics() {
	t.mu.Lock()
	children := t.children
	t.children = nil
	t.mu.Unlock()
	for _, c := range children {
		c.mu.Lock()
		c.parent = nil
		c.mu.Unlock()
	}
}

// PostEvents 上报事件序列：有父节点时交给父节点处理，根节点写入 Sink
func (t *Topic) PostEvents(ctx context.Context, seq model.AudioEventSequence) {
	if seq.IsEmpty() {
		return
	}
	t.mu.RLock()
	parent, sink := t.parent, t.sink
	t.mu.RUnlock()
	switch {
	case parent != nil:
		parent.subtopicPosted(ctx, t, seq)
	case sink != nil:
		sink.Post(ctx, seq)
	}
}

// Speak 上报一句话
func (t *Topic) Speak(ctx context.Context, utterance string) {
	t.PostEvents(ctx, model.NewSequence(model.SpeechEvent(utterance)))
}

// subtopicPosted 默认原样转发，有拦截器时先改写
func (t *Topic) subtopicPosted(ctx context.Context, child *Topic, seq model.AudioEventSequence) {
	t.mu.RLock()
	interceptor := t.interceptor
	t.mu.RUnlock()
	if interceptor != nil {
		seq = interceptor.Intercept(ctx, child, seq)
	}
	t.PostEvents(ctx, seq)
}
