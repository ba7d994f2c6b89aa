package request

import (
	"context"
	"fmt"
	"strings"

	"saykit-agent/internal/model"
	"saykit-agent/internal/service/match"
)

// ConfirmationHandler 是/否结果处理
type ConfirmationHandler func(ctx context.Context, confirmed bool) Response

var (
	affirmatives = compilePhrases("yes", "yeah", "yep", "yup", "sure", "ok", "okay", "of course",
		"do it", "confirm", "correct", "right", "affirmative", "please do", "no problem", "no worries")
	negatives = compilePhrases("no", "nope", "nah", "don't", "do not", "cancel", "cancel it",
		"negative", "never mind", "stop", "not now")
)

// Confirmation 是/否确认请求
type Confirmation struct {
	*Base
	handler ConfirmationHandler
}

// NewConfirmation 创建确认请求
func NewConfirmation(prompt string, handler ConfirmationHandler, opts ...Option) *Confirmation {
	return &Confirmation{Base: NewBase(KindConfirmation, prompt, opts...), handler: handler}
}

// Interpret 同时出现肯定与否定（如 "yes, no"）视为无法解读。
// 被否定的肯定词（"not sure"、"isn't right"）不算肯定，没有明确否定时同样无法解读
func (r *Confirmation) Interpret(ctx context.Context, transcript string) (Response, error) {
	yes, no, hedged := classifyAnswer(match.Words(transcript))
	if yes == no || (hedged && !no) {
		return Response{}, fmt.Errorf("%w: %q is not a yes or no", model.ErrNoInterpretation, transcript)
	}
	if r.handler == nil {
		return Terminal(nil), nil
	}
	return r.handler(ctx, yes), nil
}

// classifyAnswer 先标出肯定短语覆盖的单词（"no problem" 中的 no 不再算否定），再找未被覆盖的否定短语
func classifyAnswer(words []string) (yes, no, hedged bool) {
	covered := make([]bool, len(words))
	for i := range words {
		for _, p := range affirmatives {
			if !phraseAt(words, p, i) {
				continue
			}
			if i > 0 && isNegator(words[i-1]) {
				hedged = true
			} else {
				yes = true
			}
			for j := i; j < i+len(p); j++ {
				covered[j] = true
			}
		}
	}
	for i := range words {
		if covered[i] {
			continue
		}
		for _, p := range negatives {
			if phraseAt(words, p, i) {
				no = true
			}
		}
	}
	return yes, no, hedged
}

func isNegator(w string) bool {
	return w == "not" || w == "never" || strings.HasSuffix(w, "n't")
}

func phraseAt(words, phrase []string, i int) bool {
	if len(phrase) == 0 || i+len(phrase) > len(words) {
		return false
	}
	for j, w := range phrase {
		if words[i+j] != w {
			return false
		}
	}
	return true
}

func compilePhrases(phrases ...string) [][]string {
	out := make([][]string, len(phrases))
	for i, p := range phrases {
		out[i] = match.Words(p)
	}
	return out
}

func indexPhrase(words, phrase []string) int {
	if len(phrase) == 0 || len(phrase) > len(words) {
		return -1
	}
outer:
	for i := 0; i+len(phrase) <= len(words); i++ {
		for j, w := range phrase {
			if words[i+j] != w {
				continue outer
			}
		}
		return i
	}
	return -1
}
