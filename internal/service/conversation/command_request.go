package conversation

import (
	"context"
	"errors"
	"fmt"

	"saykit-agent/internal/model"
	"saykit-agent/internal/service/command"
	"saykit-agent/internal/service/request"
)

// CommandRequest 语音命令请求：回答交给分发器识别，命中识别器的动作即为结果
type CommandRequest struct {
	*request.Base
	dispatcher *command.Dispatcher
	onCommand  func(command.Result)
}

// NewCommandRequest 创建命令请求；onCommand 可为空，命中时回调
func NewCommandRequest(prompt string, d *command.Dispatcher, onCommand func(command.Result), opts ...request.Option) *CommandRequest {
	return &CommandRequest{
		Base:       request.NewBase(request.KindCommand, prompt, opts...),
		dispatcher: d,
		onCommand:  onCommand,
	}
}

// Interpret 没有命中任何命令时视为无法解读，由回合引擎追问
func (r *CommandRequest) Interpret(ctx context.Context, transcript string) (request.Response, error) {
	res, err := r.dispatcher.Respond(ctx, transcript)
	if err != nil {
		if errors.Is(err, model.ErrNoMatch) {
			return request.Response{}, fmt.Errorf("%w: %w", model.ErrNoInterpretation, err)
		}
		return request.Response{}, err
	}
	if r.onCommand != nil {
		r.onCommand(res)
	}
	return res.Response, nil
}
