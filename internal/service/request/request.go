package request

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Kind 语音请求种类
type Kind string

const (
	KindConfirmation Kind = "confirmation"
	KindSelect       Kind = "select"
	KindString       Kind = "string"
	KindNumber       Kind = "number"
	KindPattern      Kind = "pattern"
	KindCommand      Kind = "command"
)

// Request 一次对话回合：提示语、结果解读与失败处理。
// 各具体请求定义自己的结果类型，但共享 Presenter 的回合状态机
type Request interface {
	ID() string
	Kind() Kind
	// Prompt 开麦前播报给用户的提示语
	Prompt() string
	// FollowupPrompt 首次回答无法解读时重新提问的提示语，为空时使用 Presenter 的默认值
	FollowupPrompt() string
	// Interpret 解读识别文本并交给结果处理函数；无法解读时返回 model.ErrNoInterpretation
	Interpret(ctx context.Context, transcript string) (Response, error)
	// Fail 请求被取消或识别失败，失败动作只执行一次
	Fail(ctx context.Context, err error)
}

// FailureFunc 请求失败时的动作
type FailureFunc func(ctx context.Context, err error)

// Option 请求的可选配置
type Option func(*Base)

// WithFollowupPrompt 设置追问提示语
func WithFollowupPrompt(text string) Option {
	return func(b *Base) { b.followupPrompt = text }
}

// WithFailure 设置失败动作（取消或识别失败时执行一次）
func WithFailure(fn FailureFunc) Option {
	return func(b *Base) { b.onFailure = fn }
}

// WithID 指定请求 ID，默认生成 uuid
func WithID(id string) Option {
	return func(b *Base) { b.id = id }
}

// Base 各类请求共享的字段，供具体请求嵌入
type Base struct {
	id             string
	kind           Kind
	prompt         string
	followupPrompt string
	onFailure      FailureFunc
	failOnce       sync.Once
}

// NewBase 创建请求公共部分，供包外自定义请求（如命令请求）嵌入
func NewBase(kind Kind, prompt string, opts ...Option) *Base {
	b := &Base{id: uuid.NewString(), kind: kind, prompt: prompt}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Base) ID() string             { return b.id }
func (b *Base) Kind() Kind             { return b.kind }
func (b *Base) Prompt() string         { return b.prompt }
func (b *Base) FollowupPrompt() string { return b.followupPrompt }

// Fail 执行失败动作，多次调用只生效一次
func (b *Base) Fail(ctx context.Context, err error) {
	b.failOnce.Do(func() {
		if b.onFailure != nil {
			b.onFailure(ctx, err)
		}
	})
}
