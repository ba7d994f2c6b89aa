package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"saykit-agent/internal/model"
	"saykit-agent/internal/service/request"
)

// BuildRequest 按外部描述创建语音请求，结果交给 record，失败交给 failure 生成的回调
func BuildRequest(spec model.PresentRequest, record func(model.RequestResult), failure func(id string, kind request.Kind) request.FailureFunc) (request.Request, error) {
	prompt := strings.TrimSpace(spec.Prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", model.ErrInvalidRequest)
	}
	kind := request.Kind(strings.ToLower(strings.TrimSpace(spec.Kind)))
	id := uuid.NewString()
	opts := []request.Option{request.WithID(id), request.WithFollowupPrompt(spec.FollowupPrompt)}
	if failure != nil {
		opts = append(opts, request.WithFailure(failure(id, kind)))
	}
	done := func(value any, entities map[string]any) request.Response {
		if record != nil {
			record(model.RequestResult{RequestID: id, Kind: string(kind), Value: value, Entities: entities})
		}
		return request.Terminal(nil)
	}

	switch kind {
	case request.KindConfirmation:
		return request.NewConfirmation(prompt, func(_ context.Context, confirmed bool) request.Response {
			return done(confirmed, nil)
		}, opts...), nil
	case request.KindSelect:
		if len(spec.Options) == 0 {
			return nil, fmt.Errorf("%w: select request needs options", model.ErrInvalidRequest)
		}
		options := make([]request.SelectOption, len(spec.Options))
		for i, o := range spec.Options {
			options[i] = request.SelectOption{Label: o.Label, Aliases: o.Aliases}
		}
		return request.NewSelectOptions(prompt, options, func(_ context.Context, res request.SelectResult) request.Response {
			return done(res, nil)
		}, opts...), nil
	case request.KindString:
		return request.NewString(prompt, func(_ context.Context, text string) request.Response {
			return done(text, nil)
		}, opts...), nil
	case request.KindNumber:
		return request.NewNumerical(prompt, func(_ context.Context, n float64) request.Response {
			return done(n, nil)
		}, opts...), nil
	case request.KindPattern:
		r, err := request.NewPatternMatch(prompt, spec.Templates, func(_ context.Context, res request.PatternResult) request.Response {
			return done(res.Transcription, res.Entities)
		}, opts...)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, fmt.Errorf("%w: unknown kind %q", model.ErrInvalidRequest, spec.Kind)
}
