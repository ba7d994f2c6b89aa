package request

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"saykit-agent/internal/model"
	"saykit-agent/internal/service/match"
)

// StringHandler 自由文本结果处理
type StringHandler func(ctx context.Context, text string) Response

// String 接受任意非空回答
type String struct {
	*Base
	handler StringHandler
}

func NewString(prompt string, handler StringHandler, opts ...Option) *String {
	return &String{Base: NewBase(KindString, prompt, opts...), handler: handler}
}

func (r *String) Interpret(ctx context.Context, transcript string) (Response, error) {
	text := strings.TrimSpace(transcript)
	if text == "" {
		return Response{}, fmt.Errorf("%w: empty answer", model.ErrNoInterpretation)
	}
	if r.handler == nil {
		return Terminal(nil), nil
	}
	return r.handler(ctx, text), nil
}

// NumberHandler 数字结果处理
type NumberHandler func(ctx context.Context, n float64) Response

// Numerical 要求回答一个数字，允许 "I want twenty one" 这类包含数字的句子
type Numerical struct {
	*Base
	handler NumberHandler
}

func NewNumerical(prompt string, handler NumberHandler, opts ...Option) *Numerical {
	return &Numerical{Base: NewBase(KindNumber, prompt, opts...), handler: handler}
}

func (r *Numerical) Interpret(ctx context.Context, transcript string) (Response, error) {
	n, ok := findNumber(match.Words(transcript))
	if !ok {
		return Response{}, fmt.Errorf("%w: no number in %q", model.ErrNoInterpretation, transcript)
	}
	if r.handler == nil {
		return Terminal(nil), nil
	}
	return r.handler(ctx, n), nil
}

// findNumber 取最靠前、最长的可解析片段
func findNumber(words []string) (float64, bool) {
	for start := 0; start < len(words); start++ {
		for end := len(words); end > start; end-- {
			if n, ok := match.ParseNumber(words[start:end]); ok {
				return n, true
			}
		}
	}
	return 0, false
}

// PatternResult 模板匹配结果：实体值（Number 类型为 float64）与原始转写
type PatternResult struct {
	Entities      map[string]any `json:"entities"`
	Transcription string         `json:"transcription"`
	Template      string         `json:"template"`
}

// PatternHandler 模板匹配结果处理
type PatternHandler func(ctx context.Context, result PatternResult) Response

// PatternMatch 用一组模板解读回答，如 "ask @friend for @count:Number cookies"
type PatternMatch struct {
	*Base
	templates []*match.Template
	handler   PatternHandler
}

// NewPatternMatch 模板非法时返回 ErrInvalidTemplate
func NewPatternMatch(prompt string, templates []string, handler PatternHandler, opts ...Option) (*PatternMatch, error) {
	if len(templates) == 0 {
		return nil, fmt.Errorf("%w: pattern request needs at least one template", model.ErrInvalidTemplate)
	}
	r := &PatternMatch{Base: NewBase(KindPattern, prompt, opts...), handler: handler}
	for _, raw := range templates {
		t, err := match.Compile(raw)
		if err != nil {
			return nil, err
		}
		r.templates = append(r.templates, t)
	}
	return r, nil
}

// Interpret 取置信度最高的模板（至少 Likely），同分取先声明者
func (r *PatternMatch) Interpret(ctx context.Context, transcript string) (Response, error) {
	words := match.Words(transcript)
	var (
		best    match.Result
		bestTpl *match.Template
	)
	for _, t := range r.templates {
		res := t.MatchWords(words)
		if res.Matched() && res.Confidence > best.Confidence {
			best, bestTpl = res, t
		}
	}
	if bestTpl == nil || best.Confidence < model.ConfidenceLikely {
		return Response{}, fmt.Errorf("%w: %q matches no pattern", model.ErrNoInterpretation, transcript)
	}
	result := PatternResult{
		Entities:      make(map[string]any, len(best.Params)),
		Transcription: transcript,
		Template:      bestTpl.Raw(),
	}
	for i, slot := range bestTpl.Slots() {
		v := best.Params[i].Value
		if slot.Type == match.SlotNumber {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				result.Entities[slot.Name] = f
				continue
			}
		}
		result.Entities[slot.Name] = v
	}
	if r.handler == nil {
		return Terminal(nil), nil
	}
	return r.handler(ctx, result), nil
}
