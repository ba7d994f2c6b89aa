package command

import (
	"context"
	"fmt"
	"strings"

	"saykit-agent/internal/model"
)

// Kind 识别器种类
type Kind int

const (
	// KindStandard 内置命令（search、select 等），自带模板
	KindStandard Kind = iota
	// KindCustom 自定义类型，匹配逻辑由调用方添加的匹配器（含函数匹配器）决定
	KindCustom
	// KindComposite 自定义类型 + 一组模板
	KindComposite
)

func (k Kind) String() string {
	switch k {
	case KindCustom:
		return "custom_block"
	case KindComposite:
		return "composite_pattern"
	default:
		return "standard_pattern"
	}
}

// Validator 在命令胜出前校验，返回错误则丢弃该匹配
type Validator func(cmd model.Command) error

// Info 识别器描述，供可用命令列表与意图服务使用
type Info struct {
	Type       string   `json:"type"`
	Parameters []string `json:"parameters,omitempty"`
	Examples   []string `json:"examples,omitempty"`
}

// Recognizer 命令识别器：若干匹配器 + 命令类型 + 必填参数 + 动作。
// 注册到目录之后不应再修改
type Recognizer struct {
	kind        Kind
	commandType string
	matchers    []TextMatcher
	required    []string
	params      []string
	validator   Validator
	action      Action
}

// Option 识别器可选配置
type Option func(*Recognizer)

// WithRequired 必填参数，缺失时匹配被丢弃
func WithRequired(names ...string) Option {
	return func(r *Recognizer) {
		r.required = append(r.required, names...)
		r.addParams(names...)
	}
}

func WithValidator(v Validator) Option {
	return func(r *Recognizer) { r.validator = v }
}

func WithMatchers(ms ...TextMatcher) Option {
	return func(r *Recognizer) { r.AddTextMatcher(ms...) }
}

// NewCustom 自定义类型识别器，匹配器通过 AddTextMatcher 添加
func NewCustom(commandType string, action Action, opts ...Option) *Recognizer {
	return newRecognizer(KindCustom, commandType, action, opts...)
}

// NewComposite 自定义类型的模板识别器
func NewComposite(commandType string, patterns []string, action Action, opts ...Option) (*Recognizer, error) {
	r := newRecognizer(KindComposite, commandType, action, opts...)
	if err := r.AddPatterns(patterns...); err != nil {
		return nil, fmt.Errorf("recognizer %s: %w", commandType, err)
	}
	return r, nil
}

func newRecognizer(kind Kind, commandType string, action Action, opts ...Option) *Recognizer {
	r := &Recognizer{kind: kind, commandType: commandType, action: action}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recognizer) Kind() Kind     { return r.kind }
func (r *Recognizer) Type() string   { return r.commandType }
func (r *Recognizer) Action() Action { return r.action }
func (r *Recognizer) Required() []string {
	return append([]string(nil), r.required...)
}

// AddTextMatcher 追加匹配器，返回自身便于链式调用
func (r *Recognizer) AddTextMatcher(ms ...TextMatcher) *Recognizer {
	for _, m := range ms {
		if pm, ok := m.(*PatternMatcher); ok {
			for _, t := range pm.templates {
				for _, s := range t.Slots() {
					r.addParams(s.Name)
				}
			}
		}
		r.matchers = append(r.matchers, m)
	}
	return r
}

// AddPatterns 以模板形式追加匹配器，如 "i choose you @name"
func (r *Recognizer) AddPatterns(patterns ...string) error {
	if len(patterns) == 0 {
		return nil
	}
	m, err := NewPatternMatcher(patterns...)
	if err != nil {
		return err
	}
	r.AddTextMatcher(m)
	return nil
}

func (r *Recognizer) addParams(names ...string) {
	for _, n := range names {
		dup := false
		for _, p := range r.params {
			if p == n {
				dup = true
				break
			}
		}
		if !dup {
			r.params = append(r.params, n)
		}
	}
}

// Info 描述识别器
func (r *Recognizer) Info() Info {
	info := Info{Type: r.commandType, Parameters: append([]string(nil), r.params...)}
	for _, m := range r.matchers {
		if pm, ok := m.(*PatternMatcher); ok {
			info.Examples = append(info.Examples, pm.Patterns()...)
		}
	}
	return info
}

// Recognize 评估所有匹配器，返回通过校验的最高置信度命令。
// 无匹配时返回零值命令与 nil；只有参数错误的匹配时返回 ErrMissingParameter
func (r *Recognizer) Recognize(ctx context.Context, text string) (model.Command, error) {
	var (
		best    model.Command
		bestErr error
		errConf model.Confidence
	)
	for _, m := range r.matchers {
		res := m.MatchText(ctx, text)
		if res.Confidence == model.ConfidenceNone {
			continue
		}
		if res.Err != nil {
			if bestErr == nil || res.Confidence > errConf {
				bestErr, errConf = res.Err, res.Confidence
			}
			continue
		}
		if !best.IsZero() && res.Confidence <= best.Confidence() {
			continue
		}
		cmd := model.NewCommand(r.commandType, res.Params, res.Confidence)
		if err := r.Validate(cmd); err != nil {
			if bestErr == nil || res.Confidence > errConf {
				bestErr, errConf = err, res.Confidence
			}
			continue
		}
		best = cmd
	}
	if !best.IsZero() {
		return best, nil
	}
	return model.Command{}, bestErr
}

// Validate 检查必填参数与自定义校验
func (r *Recognizer) Validate(cmd model.Command) error {
	var missing []string
	for _, name := range r.required {
		if v, ok := cmd.Param(name); !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s requires %s", model.ErrMissingParameter, r.commandType, strings.Join(missing, ", "))
	}
	if r.validator != nil {
		if err := r.validator(cmd); err != nil {
			return fmt.Errorf("%w: %s: %w", model.ErrMissingParameter, r.commandType, err)
		}
	}
	return nil
}
