package request

import (
	"context"
	"fmt"

	"saykit-agent/internal/model"
	"saykit-agent/internal/service/match"
)

// SelectOption 可选项，Aliases 为同义说法
type SelectOption struct {
	Label   string   `json:"label"`
	Aliases []string `json:"aliases,omitempty"`
}

// SelectResult 选择结果，Index 从 0 开始
type SelectResult struct {
	Option SelectOption `json:"selected_option"`
	Index  int          `json:"selected_index"`
}

// SelectHandler 选择结果处理
type SelectHandler func(ctx context.Context, result SelectResult) Response

// Select 从若干选项中选择一个
type Select struct {
	*Base
	options []SelectOption
	phrases [][][]string
	handler SelectHandler
}

// NewSelect 以纯文本选项创建选择请求
func NewSelect(prompt string, labels []string, handler SelectHandler, opts ...Option) *Select {
	options := make([]SelectOption, len(labels))
	for i, l := range labels {
		options[i] = SelectOption{Label: l}
	}
	return NewSelectOptions(prompt, options, handler, opts...)
}

// NewSelectOptions 以带别名的选项创建选择请求
func NewSelectOptions(prompt string, options []SelectOption, handler SelectHandler, opts ...Option) *Select {
	r := &Select{
		Base:    NewBase(KindSelect, prompt, opts...),
		options: append([]SelectOption(nil), options...),
		handler: handler,
	}
	r.phrases = make([][][]string, len(r.options))
	for i, o := range r.options {
		r.phrases[i] = append(r.phrases[i], match.Words(o.Label))
		for _, a := range o.Aliases {
			r.phrases[i] = append(r.phrases[i], match.Words(a))
		}
	}
	return r
}

// Options 选项副本
func (r *Select) Options() []SelectOption {
	return append([]SelectOption(nil), r.options...)
}

// Choose 按下标直接给出结果，不经过文本解读
func (r *Select) Choose(ctx context.Context, index int) (Response, error) {
	if index < 0 || index >= len(r.options) {
		return Response{}, fmt.Errorf("%w: index %d out of range [0,%d)", model.ErrNoInterpretation, index, len(r.options))
	}
	return r.resolve(ctx, index), nil
}

// Interpret 依次尝试：整句等于选项或别名、整句包含的最长选项短语（长度并列视为歧义）、序数表达
func (r *Select) Interpret(ctx context.Context, transcript string) (Response, error) {
	words := match.Words(transcript)
	if len(words) == 0 {
		return Response{}, fmt.Errorf("%w: empty answer", model.ErrNoInterpretation)
	}
	for i, phrases := range r.phrases {
		for _, p := range phrases {
			if equalWords(words, p) {
				return r.resolve(ctx, i), nil
			}
		}
	}
	found, best, tie := -1, 0, false
	for i, phrases := range r.phrases {
		n := longestContained(words, phrases)
		switch {
		case n > best:
			found, best, tie = i, n, false
		case n > 0 && n == best:
			tie = true
		}
	}
	if found >= 0 && !tie {
		return r.resolve(ctx, found), nil
	}
	if n, ok := match.ParseOrdinal(words); ok {
		switch {
		case n == -1 && len(r.options) > 0:
			return r.resolve(ctx, len(r.options)-1), nil
		case n >= 1 && n <= len(r.options):
			return r.resolve(ctx, n-1), nil
		}
	}
	return Response{}, fmt.Errorf("%w: %q matches no option", model.ErrNoInterpretation, transcript)
}

func (r *Select) resolve(ctx context.Context, index int) Response {
	if r.handler == nil {
		return Terminal(nil)
	}
	return r.handler(ctx, SelectResult{Option: r.options[index], Index: index})
}

// longestContained 出现在 words 中的最长短语的单词数，没有则为 0
func longestContained(words []string, phrases [][]string) int {
	best := 0
	for _, p := range phrases {
		if len(p) > best && indexPhrase(words, p) >= 0 {
			best = len(p)
		}
	}
	return best
}

func equalWords(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
