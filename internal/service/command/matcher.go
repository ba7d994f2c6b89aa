package command

import (
	"context"

	"saykit-agent/internal/model"
	"saykit-agent/internal/service/match"
)

// Match 单个匹配器对文本的判断
type Match struct {
	Confidence model.Confidence
	Params     []model.Parameter
	// Err 匹配但参数提取失败（ErrMissingParameter）
	Err error
}

// Matched 置信度大于 None 且无参数错误
func (m Match) Matched() bool {
	return m.Confidence > model.ConfidenceNone && m.Err == nil
}

// TextMatcher 文本匹配器，必须无副作用
type TextMatcher interface {
	MatchText(ctx context.Context, text string) Match
}

// MatcherFunc 以函数实现匹配器（block 匹配器）
type MatcherFunc func(ctx context.Context, text string) Match

func (f MatcherFunc) MatchText(ctx context.Context, text string) Match {
	return f(ctx, text)
}

// PatternMatcher 模板匹配器，持有一个或多个模板，取最佳结果，同分取先声明者
type PatternMatcher struct {
	templates []*match.Template
}

// NewPatternMatcher 编译模板，任一模板非法即返回 ErrInvalidTemplate
func NewPatternMatcher(patterns ...string) (*PatternMatcher, error) {
	m := &PatternMatcher{}
	for _, p := range patterns {
		t, err := match.Compile(p)
		if err != nil {
			return nil, err
		}
		m.templates = append(m.templates, t)
	}
	return m, nil
}

// MustPatternMatcher 用于内置模板
func MustPatternMatcher(patterns ...string) *PatternMatcher {
	m, err := NewPatternMatcher(patterns...)
	if err != nil {
		panic(err)
	}
	return m
}

// Patterns 原始模板
func (m *PatternMatcher) Patterns() []string {
	out := make([]string, len(m.templates))
	for i, t := range m.templates {
		out[i] = t.Raw()
	}
	return out
}

func (m *PatternMatcher) MatchText(_ context.Context, text string) Match {
	words := match.Words(text)
	var best Match
	for _, t := range m.templates {
		res := t.MatchWords(words)
		cand := Match{Confidence: res.Confidence, Params: res.Params, Err: res.Err}
		if better(cand, best) {
			best = cand
		}
	}
	return best
}

// better 置信度高者胜；同分时可用匹配优先于参数错误的匹配
func better(cand, best Match) bool {
	if cand.Confidence == model.ConfidenceNone {
		return false
	}
	if cand.Confidence != best.Confidence {
		return cand.Confidence > best.Confidence
	}
	return cand.Err == nil && best.Err != nil
}
